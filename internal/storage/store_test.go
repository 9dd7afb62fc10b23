package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/issuelens/issuelens/internal/oputil"
)

func TestLoadJSONMissingFile(t *testing.T) {
	var out map[string]any
	ok, err := LoadJSON(filepath.Join(t.TempDir(), "absent.json"), &out)
	if err != nil {
		t.Fatalf("LoadJSON() error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing file")
	}
}

func TestLoadJSONMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	_, err := LoadJSON(path, &out)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if got := oputil.KindOf(err); got != oputil.KindInputMalformed {
		t.Errorf("kind = %q, want %q", got, oputil.KindInputMalformed)
	}
}

func TestSaveJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	in := map[string]string{"name": "登录优化", "url": "a&b<c>"}
	if err := SaveJSON(path, in); err != nil {
		t.Fatalf("SaveJSON() error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(raw)
	if !strings.Contains(text, "  \"name\"") {
		t.Error("expected two-space indentation")
	}
	if strings.Contains(text, `<`) {
		t.Error("expected HTML escaping to be disabled")
	}
	if !strings.Contains(text, "登录优化") {
		t.Error("expected raw UTF-8 output")
	}

	var out map[string]string
	ok, err := LoadJSON(path, &out)
	if err != nil || !ok {
		t.Fatalf("LoadJSON() ok=%v err=%v", ok, err)
	}
	if out["url"] != in["url"] {
		t.Errorf("round trip mismatch: %q != %q", out["url"], in["url"])
	}
}

func TestWriteAtomicLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	if err := WriteAtomic(path, []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteAtomic() error: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) != 3 {
		t.Fatalf("readback: %v %v", data, err)
	}
}
