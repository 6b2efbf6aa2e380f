package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls exponential backoff between attempts.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	JitterEnabled bool          `yaml:"jitter"`
	// Retryable decides whether an error is worth another attempt. Nil
	// retries everything.
	Retryable func(error) bool `yaml:"-"`
}

// DefaultRetryConfig suits connecting to local dependencies at startup.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. It returns the last error seen.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			break
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(cfg, attempt)):
		}
	}
	return lastErr
}

// backoff is InitialDelay * BackoffFactor^attempt, capped at MaxDelay, plus
// up to 10% jitter.
func backoff(cfg RetryConfig, attempt int) time.Duration {
	factor := cfg.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(factor, float64(attempt)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.JitterEnabled && delay >= 10 {
		delay += time.Duration(rand.Int63n(int64(delay / 10)))
	}
	return delay
}
