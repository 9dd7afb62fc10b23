// Package dataset defines the issue dataset (stories + bugs) and the
// canonical text projection used by indexing and analysis.
package dataset

import (
	"strings"

	"github.com/issuelens/issuelens/internal/oputil"
	"github.com/issuelens/issuelens/internal/storage"
)

// Kind discriminates the two issue record shapes.
type Kind string

const (
	KindStory Kind = "story"
	KindBug   Kind = "bug"
)

// Issue is one semi-structured tracker record. Field sets differ between
// stories and bugs; empty fields are absent.
type Issue map[string]string

// ID returns the record identifier, or "" when missing.
func (it Issue) ID() string { return it["id"] }

// Get returns the first non-empty value among the named fields.
func (it Issue) Get(fields ...string) string {
	for _, f := range fields {
		if v := it[f]; v != "" {
			return v
		}
	}
	return ""
}

// Dataset is one snapshot of tracker data, persisted as a single JSON file.
type Dataset struct {
	Stories []Issue `json:"stories"`
	Bugs    []Issue `json:"bugs"`
}

// Load reads a dataset file. A missing file is an InputMissing error with a
// suggestion to run ingestion first.
func Load(path string) (*Dataset, error) {
	var ds Dataset
	ok, err := storage.LoadJSON(path, &ds)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, oputil.New(oputil.KindInputMissing, "dataset %s not found", path).
			WithSuggestion("run the ingest operation or point --data at an existing dataset file")
	}
	return &ds, nil
}

// Total returns the combined record count.
func (d *Dataset) Total() int { return len(d.Stories) + len(d.Bugs) }

// Of returns the records of one kind.
func (d *Dataset) Of(kind Kind) []Issue {
	if kind == KindBug {
		return d.Bugs
	}
	return d.Stories
}

// storyFields and bugFields fix the projection order so identical records
// always produce identical text.
var storyFields = []struct{ label, field, alt string }{
	{"name", "name", ""},
	{"description", "description", ""},
	{"status", "status", ""},
	{"priority", "priority_label", "priority"},
	{"creator", "creator", ""},
	{"iteration", "iteration_id", ""},
	{"created", "created", ""},
	{"modified", "modified", ""},
}

var bugFields = []struct{ label, field, alt string }{
	{"title", "title", ""},
	{"description", "description", ""},
	{"priority", "priority", ""},
	{"severity", "severity", ""},
	{"status", "status", ""},
	{"reporter", "reporter", ""},
	{"regression", "regression_number", ""},
	{"created", "created", ""},
	{"modified", "modified", ""},
}

// Text renders the canonical single-line projection of a record: "type" and
// "id" first, then the kind's fixed field order, skipping empty fields.
// Fields join with " | ", label and value with ": ".
func Text(kind Kind, it Issue) string {
	var parts []string
	parts = append(parts, "type: "+string(kind))
	if id := it.ID(); id != "" {
		parts = append(parts, "id: "+id)
	}
	fields := storyFields
	if kind == KindBug {
		fields = bugFields
	}
	for _, f := range fields {
		val := it[f.field]
		if val == "" && f.alt != "" {
			val = it[f.alt]
		}
		if val == "" {
			continue
		}
		parts = append(parts, f.label+": "+val)
	}
	return strings.Join(parts, " | ")
}
