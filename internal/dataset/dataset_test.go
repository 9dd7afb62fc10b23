package dataset

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/issuelens/issuelens/internal/oputil"
	"github.com/issuelens/issuelens/internal/storage"
)

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := oputil.KindOf(err); got != oputil.KindInputMissing {
		t.Errorf("kind = %q, want %q", got, oputil.KindInputMissing)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	in := Dataset{
		Stories: []Issue{{"id": "1001", "name": "登录优化"}},
		Bugs:    []Issue{{"id": "2001", "title": "崩溃"}, {"id": "2002", "title": "卡顿"}},
	}
	if err := storage.SaveJSON(path, in); err != nil {
		t.Fatal(err)
	}
	ds, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if ds.Total() != 3 {
		t.Errorf("Total() = %d, want 3", ds.Total())
	}
	if len(ds.Of(KindBug)) != 2 {
		t.Errorf("Of(bug) = %d records, want 2", len(ds.Of(KindBug)))
	}
}

func TestTextStory(t *testing.T) {
	it := Issue{
		"id":             "1001",
		"name":           "支持批量导出",
		"status":         "developing",
		"priority_label": "High",
		"creator":        "alice",
		"created":        "2024-05-01 10:00:00",
	}
	got := Text(KindStory, it)
	want := "type: story | id: 1001 | name: 支持批量导出 | status: developing | priority: High | creator: alice | created: 2024-05-01 10:00:00"
	if got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestTextBugSkipsEmptyFields(t *testing.T) {
	it := Issue{"id": "2001", "title": "启动崩溃", "severity": "fatal"}
	got := Text(KindBug, it)
	if strings.Contains(got, "description") || strings.Contains(got, "reporter") {
		t.Errorf("empty fields leaked into projection: %q", got)
	}
	if !strings.HasPrefix(got, "type: bug | id: 2001 | title: 启动崩溃") {
		t.Errorf("unexpected prefix: %q", got)
	}
}

func TestTextDeterministic(t *testing.T) {
	it := Issue{"id": "1", "name": "a", "description": "b", "status": "c"}
	first := Text(KindStory, it)
	for i := 0; i < 10; i++ {
		if got := Text(KindStory, it); got != first {
			t.Fatalf("projection not deterministic: %q vs %q", got, first)
		}
	}
}

func TestPriorityLabelFallback(t *testing.T) {
	it := Issue{"id": "1", "name": "n", "priority": "2"}
	if got := Text(KindStory, it); !strings.Contains(got, "priority: 2") {
		t.Errorf("expected priority fallback, got %q", got)
	}
}
