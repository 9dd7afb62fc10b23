package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewCreatesLayout(t *testing.T) {
	root := t.TempDir()
	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	for _, dir := range []string{p.DataDir(), p.VectorDir(), p.TrendDir(), p.ModelsDir(), p.ConfigDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("expected directory %s: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestDataFileResolution(t *testing.T) {
	root := t.TempDir()
	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	abs := filepath.Join(root, "elsewhere", "data.json")
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"default", "", filepath.Join(root, "local_data", "msg_from_fetcher.json")},
		{"bare name", "snapshot.json", filepath.Join(root, "local_data", "snapshot.json")},
		{"project relative", "local_data/snapshot.json", filepath.Join(root, "local_data", "snapshot.json")},
		{"absolute", abs, abs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.DataFile(tt.ref); got != tt.want {
				t.Errorf("DataFile(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestVectorBase(t *testing.T) {
	root := t.TempDir()
	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got, want := p.VectorBase(""), filepath.Join(root, "local_data", "vector_data", "data_vector"); got != want {
		t.Errorf("VectorBase(\"\") = %q, want %q", got, want)
	}
	if got, want := p.VectorBase("custom"), filepath.Join(root, "local_data", "vector_data", "custom"); got != want {
		t.Errorf("VectorBase(custom) = %q, want %q", got, want)
	}
}
