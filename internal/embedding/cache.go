package embedding

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// SnapshotDir locates the newest cached snapshot of a sentence-transformer
// model under modelsDir, following the hub cache layout
// models--sentence-transformers--<name>/snapshots/<revision>. The boolean is
// false when no snapshot exists.
func SnapshotDir(modelsDir, model string) (string, bool) {
	base := filepath.Join(modelsDir, "models--sentence-transformers--"+model, "snapshots")
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", false
	}
	var newest string
	var newestMod int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = filepath.Join(base, e.Name())
			newestMod = mod
		}
	}
	return newest, newest != ""
}

var (
	engineOnce sync.Once
	engineInst Engine
	engineErr  error
)

// DefaultEngine returns the process-wide engine, constructing it on first
// use. When no cached snapshot of the model exists, the engine downloads the
// model once before its first embed request.
func DefaultEngine(modelsDir, endpoint, model string, logger *slog.Logger) (Engine, error) {
	engineOnce.Do(func() {
		if model == "" {
			model = DefaultModel
		}
		if logger == nil {
			logger = slog.Default()
		}
		eng := NewOllama(endpoint, model, 0)
		if snap, ok := SnapshotDir(modelsDir, model); ok {
			logger.Debug("embedding model snapshot found", "model", model, "path", snap)
		} else {
			logger.Info("no local snapshot for embedding model, pulling it on first use",
				"model", model, "models_dir", modelsDir)
			eng.pullFirst = true
		}
		engineInst = eng
		engineErr = nil
	})
	if engineErr != nil {
		return nil, fmt.Errorf("init embedding engine: %w", engineErr)
	}
	return engineInst, nil
}
