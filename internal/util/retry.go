// Package util provides shared utility functions for backuptool.
package util

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/DevHarmeet/backuptool/internal/common"
)

// DefaultTxAttempts is how many times a conflicting transaction is run before giving up.
const DefaultTxAttempts = 3

// DatabaseRetryOptions returns retry options optimized for database operations.
// Uses backoff (100ms, 200ms, 300ms cap) suitable for transient lock errors.
func DatabaseRetryOptions(ctx context.Context, attempts uint) []retry.Option {
	if attempts == 0 {
		attempts = DefaultTxAttempts
	}
	return []retry.Option{
		retry.Attempts(attempts),
		retry.Delay(100 * time.Millisecond),
		retry.MaxDelay(300 * time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(common.IsRetryable),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	}
}

// Retry executes fn with retry logic.
// Returns the last error if all attempts fail.
func Retry(ctx context.Context, fn func() error, opts ...retry.Option) error {
	if len(opts) == 0 {
		opts = DatabaseRetryOptions(ctx, 0)
	}
	return retry.Do(fn, opts...)
}

// RetryWithResult executes fn with retry logic and returns the result.
func RetryWithResult[T any](ctx context.Context, fn func() (T, error), opts ...retry.Option) (T, error) {
	if len(opts) == 0 {
		opts = DatabaseRetryOptions(ctx, 0)
	}
	return retry.DoWithData(fn, opts...)
}
