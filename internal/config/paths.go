// Package config resolves project-relative paths for data, vector, and model
// storage, creating the required directory layout on first access.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DataDirName holds datasets, analysis artifacts, and trend charts.
	DataDirName = "local_data"
	// VectorDirName holds vector-index sidecar files, under DataDirName.
	VectorDirName = "vector_data"
	// TrendDirName holds generated trend charts, under DataDirName.
	TrendDirName = "time_trend"
	// ModelsDirName caches embedding-model snapshots and tokenizer data.
	ModelsDirName = "models"
	// ConfigDirName holds rubric and knowledge-base configuration files.
	ConfigDirName = "config"

	// DefaultDataFile is the canonical issue-dataset location relative to
	// the project root.
	DefaultDataFile = "msg_from_fetcher.json"
)

// Paths resolves locations under a single project root. The zero value is not
// usable; construct with Discover or New.
type Paths struct {
	Root string
}

// Discover walks upward from the working directory until it finds a directory
// that already contains the local_data marker or a go.mod, and falls back to
// the working directory itself. The standard directory layout is created if
// missing.
func Discover() (*Paths, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root := cwd
	for dir := cwd; ; {
		if dirExists(filepath.Join(dir, DataDirName)) || fileExists(filepath.Join(dir, "go.mod")) {
			root = dir
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return New(root)
}

// New creates a Paths rooted at the given directory and ensures the standard
// layout exists.
func New(root string) (*Paths, error) {
	p := &Paths{Root: root}
	for _, dir := range []string{
		p.DataDir(),
		p.VectorDir(),
		p.TrendDir(),
		p.ModelsDir(),
		p.ConfigDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return p, nil
}

// DataDir returns the local_data directory.
func (p *Paths) DataDir() string { return filepath.Join(p.Root, DataDirName) }

// VectorDir returns the vector sidecar directory.
func (p *Paths) VectorDir() string { return filepath.Join(p.DataDir(), VectorDirName) }

// TrendDir returns the trend-chart directory.
func (p *Paths) TrendDir() string { return filepath.Join(p.DataDir(), TrendDirName) }

// ModelsDir returns the model cache directory.
func (p *Paths) ModelsDir() string { return filepath.Join(p.Root, ModelsDirName) }

// ConfigDir returns the configuration directory.
func (p *Paths) ConfigDir() string { return filepath.Join(p.Root, ConfigDirName) }

// DataFile resolves a data-file reference. Absolute paths are returned as-is.
// Paths that already start with "local_data/" are taken relative to the
// project root; anything else is taken relative to local_data itself. An empty
// reference resolves to the default dataset file.
func (p *Paths) DataFile(ref string) string {
	if ref == "" {
		ref = DefaultDataFile
	}
	if filepath.IsAbs(ref) {
		return ref
	}
	norm := filepath.ToSlash(ref)
	if norm == DataDirName || strings.HasPrefix(norm, DataDirName+"/") {
		return filepath.Join(p.Root, filepath.FromSlash(norm))
	}
	return filepath.Join(p.DataDir(), filepath.FromSlash(norm))
}

// VectorBase returns the sidecar base path for a named vector index. All
// sidecar files share this prefix.
func (p *Paths) VectorBase(name string) string {
	if name == "" {
		name = "data_vector"
	}
	return filepath.Join(p.VectorDir(), name)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
