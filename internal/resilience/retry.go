// Package resilience holds the retry loop shared by the network clients and
// the classification of errors worth retrying.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BackoffFunc returns the delay to wait after the given failed attempt.
// Attempts are numbered from 1.
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff waits base × attempt: base, 2×base, 3×base, ...
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(attempt)
	}
}

// RetryConfig controls retry behavior.
type RetryConfig struct {
	// MaxAttempts counts the first try. Default: 3.
	MaxAttempts int

	// Backoff computes the wait between attempts. Default: LinearBackoff(800ms).
	Backoff BackoffFunc

	// ShouldRetry decides whether an error is worth another attempt.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// LinearRetryConfig returns a configuration that waits base × attempt
// between attempts and retries every error.
func LinearRetryConfig(maxAttempts int, base time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts: maxAttempts,
		Backoff:     LinearBackoff(base),
		ShouldRetry: func(error) bool { return true },
	}
}

// DoVal executes fn with retry logic according to cfg and returns its
// value. Context cancellation stops retries immediately. The last error is
// returned when every attempt fails.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = LinearBackoff(800 * time.Millisecond)
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(lastErr) {
			return zero, lastErr
		}

		// No sleep after the last attempt.
		if attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		if !sleep(ctx, cfg.Backoff(attempt)) {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RetryLogger returns an OnRetry callback that logs each failed attempt.
func RetryLogger(component, target string) func(int, error) {
	log := zap.L().With(zap.String("component", component))
	return func(attempt int, err error) {
		log.Warn("attempt failed, retrying",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Bool("transient", IsTransient(err)),
			zap.Error(err),
		)
	}
}
