package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("Normalize([3 4]) = %v, want [0.6 0.8]", v)
	}

	zero := Normalize([]float32{0, 0, 0})
	for _, x := range zero {
		if x != 0 {
			t.Errorf("zero vector changed: %v", zero)
		}
	}
}

func TestDotOfNormalizedSelfIsOne(t *testing.T) {
	v := Normalize([]float32{1, 2, 3, 4})
	if got := Dot(v, v); math.Abs(float64(got)-1) > 1e-5 {
		t.Errorf("Dot(v, v) = %v, want 1", got)
	}
}

func TestSnapshotDirPicksNewest(t *testing.T) {
	models := t.TempDir()
	base := filepath.Join(models, "models--sentence-transformers--"+DefaultModel, "snapshots")
	older := filepath.Join(base, "aaa111")
	newer := filepath.Join(base, "bbb222")
	for _, dir := range []string{older, newer} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}

	got, ok := SnapshotDir(models, DefaultModel)
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if got != newer {
		t.Errorf("SnapshotDir() = %q, want %q", got, newer)
	}
}

func TestSnapshotDirAbsent(t *testing.T) {
	if _, ok := SnapshotDir(t.TempDir(), DefaultModel); ok {
		t.Error("expected no snapshot in empty models dir")
	}
}

func TestOllamaEncode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q, want /api/embed", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		out := embedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			out.Embeddings[i] = []float32{float32(i), 1, 0}
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e := NewOllama(srv.URL, "test-model", 0)
	vecs, err := e.Encode(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	if e.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3 after first encode", e.Dimensions())
	}
}

// pullServer serves /api/embed with 404 until the model has been pulled
// through /api/pull.
type pullServer struct {
	t      *testing.T
	pulled bool
	pulls  int
	embeds int
}

func (s *pullServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/pull":
		s.pulls++
		var req pullRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.t.Fatal(err)
		}
		if req.Model == "" || req.Stream {
			s.t.Errorf("pull request = %+v, want model set and stream false", req)
		}
		s.pulled = true
		w.Write([]byte(`{"status": "success"}`))
	case "/api/embed":
		s.embeds++
		if !s.pulled {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "model not found"}`))
			return
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.t.Fatal(err)
		}
		out := embedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			out.Embeddings[i] = []float32{1, 0}
		}
		json.NewEncoder(w).Encode(out)
	default:
		s.t.Errorf("unexpected path %q", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestOllamaPullsMissingModel(t *testing.T) {
	backend := &pullServer{t: t}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	e := NewOllama(srv.URL, "test-model", 0)
	vecs, err := e.Encode(context.Background(), []string{"one"})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if len(vecs) != 1 {
		t.Fatalf("got %d vectors, want 1", len(vecs))
	}
	if backend.pulls != 1 {
		t.Errorf("pulls = %d, want exactly 1", backend.pulls)
	}

	// The model is present now; further encodes must not pull again.
	if _, err := e.Encode(context.Background(), []string{"two"}); err != nil {
		t.Fatal(err)
	}
	if backend.pulls != 1 {
		t.Errorf("pulls after second encode = %d, want still 1", backend.pulls)
	}
}

func TestOllamaPullsBeforeFirstEncodeWithoutSnapshot(t *testing.T) {
	backend := &pullServer{t: t}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	e := NewOllama(srv.URL, "test-model", 0)
	e.pullFirst = true
	if _, err := e.Encode(context.Background(), []string{"one"}); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if backend.pulls != 1 || backend.embeds != 1 {
		t.Errorf("pulls = %d, embeds = %d, want the pull to precede the only embed",
			backend.pulls, backend.embeds)
	}
}

func TestOllamaEncodeConcurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
			return
		}
		out := embedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			out.Embeddings[i] = []float32{1, 2, 3, 4}
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e := NewOllama(srv.URL, "test-model", 0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Encode(context.Background(), []string{"text"}); err != nil {
				t.Error(err)
			}
			e.Dimensions()
		}()
	}
	wg.Wait()
	if e.Dimensions() != 4 {
		t.Errorf("Dimensions() = %d, want 4", e.Dimensions())
	}
}

func TestOllamaEncodeCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	e := NewOllama(srv.URL, "test-model", 0)
	if _, err := e.Encode(context.Background(), []string{"one", "two"}); err == nil {
		t.Error("expected error on vector count mismatch")
	}
}
