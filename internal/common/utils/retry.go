package utils

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig controls RetryWithBackoff.
type RetryConfig struct {
	// MaxAttempts includes the first attempt
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// JitterFactor adds up to this fraction of the delay, 0 disables jitter
	JitterFactor float64

	// RetryableErrors reports whether err is worth another attempt.
	// If nil, all errors are retried.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig is tuned for dependencies that are still starting up.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RetryWithBackoff calls fn until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is done.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func(attempt int) error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if config.RetryableErrors != nil && !config.RetryableErrors(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		wait := delay
		if config.JitterFactor > 0 && wait > 0 {
			wait += time.Duration(rand.Int63n(int64(float64(wait)*config.JitterFactor) + 1))
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
