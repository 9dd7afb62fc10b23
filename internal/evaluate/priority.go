package evaluate

import (
	"fmt"
	"sort"
	"strings"
)

// PriorityAnalysis reports how the case set's priority mix compares with the
// rubric bands.
type PriorityAnalysis struct {
	Counts       map[string]int     `json:"counts"`
	Distribution map[string]float64 `json:"distribution"`
	Compliant    map[string]bool    `json:"compliant"`
	Verdict      bool               `json:"verdict"`
	Rules        []string           `json:"rules"`
}

// AnalyzePriorities computes the percentage share per priority label and
// checks each rubric band inclusively. The verdict is true only when every
// band holds. Labels outside the rubric count toward the distribution but
// not the verdict.
func AnalyzePriorities(cases []TestCase, r *Rubric) PriorityAnalysis {
	a := PriorityAnalysis{
		Counts:       map[string]int{},
		Distribution: map[string]float64{},
		Compliant:    map[string]bool{},
		Verdict:      true,
	}
	for _, tc := range cases {
		label := strings.ToUpper(strings.TrimSpace(tc.Priority))
		if label == "" {
			label = "(unset)"
		}
		a.Counts[label]++
	}
	total := len(cases)
	if total == 0 {
		a.Verdict = false
		a.Rules = append(a.Rules, "no cases to analyze")
		return a
	}
	for label, n := range a.Counts {
		a.Distribution[label] = float64(n) * 100 / float64(total)
	}

	labels := make([]string, 0, len(r.PriorityRatios))
	for label := range r.PriorityRatios {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		band := r.PriorityRatios[label]
		pct := a.Distribution[label]
		ok := pct >= band.Min && pct <= band.Max
		a.Compliant[label] = ok
		if !ok {
			a.Verdict = false
		}
		a.Rules = append(a.Rules, fmt.Sprintf("%s: %.1f%% (want %.0f%%-%.0f%%)", label, pct, band.Min, band.Max))
	}
	return a
}
