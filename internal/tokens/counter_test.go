package tokens

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"ascii only", "abcdefgh", 2},
		{"ascii ceil", "abcde", 2},
		{"cjk only", "需求评估", 3},
		{"cjk ceil", "需求评", 2},
		{"mixed", "bug修复", 2 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestCountFallsBackWithoutTokenizer(t *testing.T) {
	c := &Counter{}
	text := "登录页面偶发白屏"
	if got, want := c.Count(text), Estimate(text); got != want {
		t.Errorf("Count() = %d, want heuristic %d", got, want)
	}
}

func TestSplitByBudget(t *testing.T) {
	byLen := func(s string) int { return len(s) }

	tests := []struct {
		name      string
		items     []string
		threshold int
		start     int
		want      [][]string
	}{
		{
			name:      "all fit",
			items:     []string{"aa", "bb"},
			threshold: 10,
			want:      [][]string{{"aa", "bb"}},
		},
		{
			name:      "split at boundary",
			items:     []string{"aaa", "bbb", "ccc"},
			threshold: 6,
			want:      [][]string{{"aaa", "bbb"}, {"ccc"}},
		},
		{
			name:      "oversized item gets own batch",
			items:     []string{"aaaaaaaaaa", "b"},
			threshold: 3,
			want:      [][]string{{"aaaaaaaaaa"}, {"b"}},
		},
		{
			name:      "start offset",
			items:     []string{"skip", "aa", "bb"},
			threshold: 10,
			start:     1,
			want:      [][]string{{"aa", "bb"}},
		},
		{
			name:      "start past end",
			items:     []string{"aa"},
			threshold: 10,
			start:     5,
			want:      nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitByBudget(tt.items, byLen, tt.threshold, tt.start)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d batches, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if strings.Join(got[i], ",") != strings.Join(tt.want[i], ",") {
					t.Errorf("batch %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitByBudgetPlacesEveryItem(t *testing.T) {
	items := []string{"aaaa", "bb", "cccccc", "d", "ee", "fffff"}
	batches := SplitByBudget(items, func(s string) int { return len(s) }, 5, 0)
	var total int
	for _, b := range batches {
		if len(b) == 0 {
			t.Fatal("empty batch produced")
		}
		total += len(b)
	}
	if total != len(items) {
		t.Errorf("placed %d items, want %d", total, len(items))
	}
}
