package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/issuelens/issuelens/internal/backoff"
)

// RetryingClient decorates a client with retries for transient failures.
// The underlying client never retries on its own; this wrapper is the one
// place retry policy lives, and callers opt into it explicitly.
type RetryingClient struct {
	inner    *Client
	attempts int
	policy   backoff.Policy
	logger   *slog.Logger
}

// WithRetry wraps client so Call retries transient errors up to attempts
// times in total.
func WithRetry(client *Client, attempts int, logger *slog.Logger) *RetryingClient {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingClient{inner: client, attempts: attempts, policy: backoff.Default(), logger: logger}
}

// Call forwards to the wrapped client, backing off between transient
// failures. Permanent errors and cancellation return immediately.
func (r *RetryingClient) Call(ctx context.Context, prompt string, opts Options) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		text, err := r.inner.Call(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var le *Error
		if !errors.As(err, &le) || !le.Transient() || attempt == r.attempts {
			return "", err
		}
		delay := r.policy.Delay(attempt)
		r.logger.Warn("transient completion failure, backing off",
			"attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}
