// Package embedding produces sentence vectors for semantic search. Encoding
// is delegated to an Engine so the index code stays independent of how the
// vectors are produced.
package embedding

import (
	"context"
	"math"
)

// DefaultModel is the sentence-transformer model the index is built with.
const DefaultModel = "paraphrase-multilingual-MiniLM-L12-v2"

// Engine turns text into fixed-width vectors. Implementations must be safe
// for concurrent use.
type Engine interface {
	// Encode embeds all texts in one call, preserving order.
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the width of every vector Encode returns.
	Dimensions() int
	// Name identifies the underlying model.
	Name() string
}

// Normalize scales v to unit L2 length in place and returns it. The zero
// vector is left unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// NormalizeAll normalizes every row in place and returns the slice.
func NormalizeAll(rows [][]float32) [][]float32 {
	for _, row := range rows {
		Normalize(row)
	}
	return rows
}

// Dot returns the inner product of two equal-width vectors. For normalized
// rows this is the cosine similarity.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
