// Package keywords mines term frequencies from issue text fields using CJK
// word segmentation, and groups the counted terms into fixed analysis
// categories.
package keywords

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"

	"github.com/issuelens/issuelens/internal/dataset"
)

// Options tunes an analysis run.
type Options struct {
	// Extended widens the mined field set beyond name/description.
	Extended bool
	// MinFrequency is the high-frequency cutoff (default 5).
	MinFrequency int
	// TopN caps the ranked term list (default 20).
	TopN int
}

// TermCount is one counted term.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Bin is one frequency-distribution bucket.
type Bin struct {
	Range string `json:"range"`
	Terms int    `json:"terms"`
}

// Report is the full analysis output.
type Report struct {
	TotalTokens   int                    `json:"total_tokens"`
	UniqueTerms   int                    `json:"unique_terms"`
	HighFrequency []TermCount            `json:"high_frequency"`
	Distribution  []Bin                  `json:"distribution"`
	TopTerms      []TermCount            `json:"top_terms"`
	Categories    map[string][]TermCount `json:"categories"`
}

var (
	segOnce sync.Once
	seg     gse.Segmenter
)

// segmenter returns the process-wide gse segmenter; loading the embedded
// dictionary is expensive, so it happens once.
func segmenter() *gse.Segmenter {
	segOnce.Do(func() {
		seg.LoadDict()
	})
	return &seg
}

// Analyze segments the selected fields of every record and builds the
// frequency report.
func Analyze(ds *dataset.Dataset, opts Options) *Report {
	if opts.MinFrequency <= 0 {
		opts.MinFrequency = 5
	}
	if opts.TopN <= 0 {
		opts.TopN = 20
	}
	fields := coreFields
	if opts.Extended {
		fields = append(append([]string{}, coreFields...), extendedFields...)
	}

	counts := make(map[string]int)
	total := 0
	collect := func(items []dataset.Issue) {
		for _, it := range items {
			for _, f := range fields {
				for _, term := range Segment(it[f]) {
					counts[term]++
					total++
				}
			}
		}
	}
	collect(ds.Stories)
	collect(ds.Bugs)

	report := &Report{
		TotalTokens: total,
		UniqueTerms: len(counts),
		Categories:  make(map[string][]TermCount),
	}

	ranked := make([]TermCount, 0, len(counts))
	for term, n := range counts {
		ranked = append(ranked, TermCount{Term: term, Count: n})
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Count != ranked[b].Count {
			return ranked[a].Count > ranked[b].Count
		}
		return ranked[a].Term < ranked[b].Term
	})

	for _, tc := range ranked {
		if tc.Count >= opts.MinFrequency {
			report.HighFrequency = append(report.HighFrequency, tc)
		}
	}
	top := opts.TopN
	if top > len(ranked) {
		top = len(ranked)
	}
	report.TopTerms = ranked[:top]

	for _, bin := range frequencyBins {
		b := Bin{Range: bin.Label}
		for _, tc := range ranked {
			if tc.Count >= bin.Lo && tc.Count <= bin.Hi {
				b.Terms++
			}
		}
		report.Distribution = append(report.Distribution, b)
	}

	for category, lexicon := range categoryLexicons {
		for _, term := range lexicon {
			if n := counts[term]; n > 0 {
				report.Categories[category] = append(report.Categories[category], TermCount{Term: term, Count: n})
			}
		}
		sort.Slice(report.Categories[category], func(a, b int) bool {
			return report.Categories[category][a].Count > report.Categories[category][b].Count
		})
	}
	return report
}

// Segment splits text into countable terms: CJK runs are segmented into
// multi-character words, Latin and digit tokens pass through whole with
// Latin lowercased. Single-character terms, pure digits, and stop terms are
// dropped.
func Segment(text string) []string {
	if text == "" {
		return nil
	}
	var terms []string
	for _, raw := range segmenter().Cut(text, true) {
		term := strings.ToLower(strings.TrimSpace(raw))
		if !keepTerm(term) {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

func keepTerm(term string) bool {
	runes := []rune(term)
	if len(runes) < 2 {
		return false
	}
	if stopTerms[term] {
		return false
	}
	hasLetter := false
	allDigit := true
	for _, r := range runes {
		if unicode.IsLetter(r) {
			hasLetter = true
		}
		if !unicode.IsDigit(r) {
			allDigit = false
		}
	}
	return hasLetter && !allDigit
}
