// Package tokens estimates token counts for LLM budgeting and splits work
// into batches that fit a token threshold.
package tokens

import (
	"log/slog"
	"os"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens with a cl100k_base tokenizer, falling back to a
// character heuristic when the tokenizer cannot be loaded. Safe for
// concurrent use after construction.
type Counter struct {
	enc *tiktoken.Tiktoken
}

var (
	defaultOnce    sync.Once
	defaultCounter *Counter
)

// Default returns the process-wide counter. The tokenizer is loaded at most
// once; when cacheDir is non-empty the BPE data is read from (and cached to)
// that directory instead of the network default.
func Default(cacheDir string, logger *slog.Logger) *Counter {
	defaultOnce.Do(func() {
		defaultCounter = newCounter(cacheDir, logger)
	})
	return defaultCounter
}

func newCounter(cacheDir string, logger *slog.Logger) *Counter {
	if cacheDir != "" {
		os.Setenv("TIKTOKEN_CACHE_DIR", cacheDir)
	}
	enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		if logger != nil {
			logger.Warn("tokenizer unavailable, using character heuristic", "error", err)
		}
		return &Counter{}
	}
	return &Counter{enc: enc}
}

// Count returns the token count of text. With no tokenizer loaded it uses the
// heuristic ceil(cjk/1.5) + ceil(other/4), which overestimates slightly for
// mixed text and keeps batching conservative.
func (c *Counter) Count(text string) int {
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return Estimate(text)
}

// Estimate is the tokenizer-free heuristic: CJK characters weigh 1/1.5
// tokens, everything else 1/4.
func Estimate(text string) int {
	var cjk, other int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	return (2*cjk+2)/3 + (other+3)/4
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// SplitByBudget partitions items into consecutive batches whose estimated
// token sum stays at or under threshold. An item whose own estimate exceeds
// the threshold still forms a singleton batch, so every item is placed.
// Splitting begins at start; earlier items are ignored.
func SplitByBudget[T any](items []T, estimate func(T) int, threshold, start int) [][]T {
	if start < 0 {
		start = 0
	}
	if start >= len(items) {
		return nil
	}
	var batches [][]T
	var current []T
	used := 0
	for _, it := range items[start:] {
		cost := estimate(it)
		if len(current) > 0 && used+cost > threshold {
			batches = append(batches, current)
			current = nil
			used = 0
		}
		current = append(current, it)
		used += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
