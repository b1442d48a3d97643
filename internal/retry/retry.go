// Package retry implements the fixed-delay retry loop used by delivery
// backends. A failed attempt is retried after a constant delay until the
// retry budget is exhausted; the total number of attempts is MaxRetries + 1.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config defines the retry behavior for one delivery.
type Config struct {
	// MaxRetries is the number of additional attempts after the first
	// one fails. Zero means a single attempt.
	MaxRetries int

	// Delay is the pause between consecutive attempts.
	Delay time.Duration
}

// ShouldRetryFunc decides whether an error is worth another attempt. A nil
// function retries every error.
type ShouldRetryFunc func(error) bool

// Do executes fn until it succeeds, the error is classified as permanent,
// or MaxRetries+1 attempts have been made. It returns the number of
// attempts performed and the last error (nil on success).
//
// The delay between attempts respects context cancellation; a canceled
// context ends the loop immediately with the context error.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) (int, error) {
	attempts := 0
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return attempts, ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}

		attempts++
		err := fn()
		if err == nil {
			return attempts, nil
		}
		lastErr = err

		if shouldRetry != nil && !shouldRetry(err) {
			return attempts, err
		}
	}

	return attempts, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
