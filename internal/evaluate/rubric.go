// Package evaluate scores spreadsheet test cases against a rubric with
// token-budgeted LLM batches and parses the replies back into structured
// evaluations.
package evaluate

import (
	"fmt"

	"github.com/issuelens/issuelens/internal/oputil"
	"github.com/issuelens/issuelens/internal/storage"
)

// RubricFile is the rubric location under the config directory.
const RubricFile = "test_case_rules.json"

// KBFile is the requirement knowledge-base location under the config
// directory.
const KBFile = "require_list_config.json"

// Ratio is an inclusive percentage band.
type Ratio struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Rubric holds the evaluation thresholds. Missing file fields keep their
// defaults. Version and LastUpdated ride along into the result snapshot.
type Rubric struct {
	Version        string           `json:"version,omitempty"`
	LastUpdated    string           `json:"last_updated,omitempty"`
	TitleMaxLength int              `json:"title_max_length"`
	MaxSteps       int              `json:"max_steps"`
	PriorityRatios map[string]Ratio `json:"priority_ratios"`
}

// DefaultRubric returns the built-in thresholds: titles within 40
// characters, at most 10 steps, and P0/P1/P2 shares of 10-20%, 60-70%,
// and 10-30%.
func DefaultRubric() *Rubric {
	return &Rubric{
		TitleMaxLength: 40,
		MaxSteps:       10,
		PriorityRatios: map[string]Ratio{
			"P0": {Min: 10, Max: 20},
			"P1": {Min: 60, Max: 70},
			"P2": {Min: 10, Max: 30},
		},
	}
}

// LoadRubric reads the rubric file, layering it over the defaults. A missing
// file yields the defaults; a malformed one is a ConfigError.
func LoadRubric(path string) (*Rubric, error) {
	r := DefaultRubric()
	ok, err := storage.LoadJSON(path, r)
	if err != nil {
		return nil, oputil.Wrap(err, oputil.KindConfigError, "rubric %s", path)
	}
	if !ok {
		return r, nil
	}
	if r.TitleMaxLength <= 0 || r.MaxSteps <= 0 {
		return nil, oputil.New(oputil.KindConfigError,
			"rubric %s: title_max_length and max_steps must be positive", path)
	}
	for label, ratio := range r.PriorityRatios {
		if ratio.Min < 0 || ratio.Max > 100 || ratio.Min > ratio.Max {
			return nil, oputil.New(oputil.KindConfigError,
				"rubric %s: priority ratio %s has invalid band [%v, %v]", path, label, ratio.Min, ratio.Max)
		}
	}
	return r, nil
}

// Requirement is one knowledge-base entry.
type Requirement struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Priority         string `json:"priority"`
	LocalCreatedTime string `json:"local_created_time"`
}

// KB is the requirement knowledge base embedded into evaluation prompts.
type KB struct {
	Requirements []Requirement `json:"requirements"`
}

// LoadKB reads the knowledge base; a missing file is an empty KB.
func LoadKB(path string) (KB, error) {
	var kb KB
	if _, err := storage.LoadJSON(path, &kb); err != nil {
		return KB{}, oputil.Wrap(err, oputil.KindConfigError, "knowledge base %s", path)
	}
	return kb, nil
}

// Render flattens the KB into the compact form embedded in prompts,
// preserving file order.
func (kb KB) Render() string {
	if len(kb.Requirements) == 0 {
		return "(无)"
	}
	out := ""
	for _, req := range kb.Requirements {
		out += fmt.Sprintf("- [%s] %s", req.ID, req.Title)
		if req.Priority != "" {
			out += fmt.Sprintf(" (优先级 %s)", req.Priority)
		}
		if req.Description != "" {
			out += ": " + req.Description
		}
		out += "\n"
	}
	return out
}
