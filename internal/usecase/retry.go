package usecase

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// WithRetry runs fn with exponential backoff, treating every error as retryable.
func WithRetry(ctx context.Context, count uint64, delay time.Duration, fn func(ctx context.Context) error) error {
	if delay <= 0 {
		delay = time.Millisecond
	}
	return retry.Do(ctx, retry.WithMaxRetries(count, retry.NewExponential(delay)), func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
