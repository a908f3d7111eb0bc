package postgres

import (
	"context"
	"time"
)

// RetryConfig configures exponential backoff while waiting for the database
type RetryConfig struct {
	MaxRetries int           // Maximum number of attempts
	BaseDelay  time.Duration // Initial delay between attempts
	MaxDelay   time.Duration // Maximum delay between attempts
	Multiplier float64       // Exponential backoff multiplier
}

// DefaultRetryConfig covers a database that is still starting next to us
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   3 * time.Second,
		Multiplier: 2,
	}
}

// retryWithBackoff runs fn until it succeeds, the attempts are used up or
// ctx is done.
func retryWithBackoff(ctx context.Context, config RetryConfig, fn func(context.Context) error) error {
	var lastErr error
	backoff := config.BaseDelay

	for attempt := 0; attempt < max(config.MaxRetries, 1); attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < config.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return lastErr
}
