// Package backoff computes exponential retry delays with jitter.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy parameterizes the delay curve.
type Policy struct {
	// Initial is the first-attempt delay.
	Initial time.Duration
	// Max caps the computed delay.
	Max time.Duration
	// Factor multiplies the delay per attempt.
	Factor float64
	// Jitter (0..1) is the random fraction added on top of the base delay.
	Jitter float64
}

// Default is tuned for rate-limited completion endpoints: 1s initial,
// doubling, 30s cap, 20% jitter.
func Default() Policy {
	return Policy{Initial: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: 0.2}
}

// Delay returns the wait before the given attempt. Attempts start at 1.
func (p Policy) Delay(attempt int) time.Duration {
	return p.delayWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter needs no cryptographic randomness
}

// delayWithRand is Delay with an injected random value in [0, 1), so tests
// stay deterministic.
func (p Policy) delayWithRand(attempt int, random float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.Initial) * math.Pow(p.Factor, float64(attempt-1))
	total := base + base*p.Jitter*random
	if max := float64(p.Max); total > max {
		total = max
	}
	return time.Duration(total)
}
