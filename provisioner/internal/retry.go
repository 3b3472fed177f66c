package internal

import (
	"context"
	"time"

	"github.com/gammadia/freetier/acquirer"
)

// ReadAttempts is how many times a read-only provider call is tried before
// its error is handed to the engine.
const ReadAttempts = 3

// Retryable reports whether a failed call may be repeated.
type Retryable func(error) bool

// Transient retries only errors the engine would classify as transient.
func Transient(err error) bool {
	return acquirer.Classify(err) == acquirer.Transient
}

// Retry calls fn up to maxAttempts times with exponential backoff
// (100ms, 200ms, 400ms, 800ms, ...) while it fails with transient errors.
// Returns ctx.Err() if the context is cancelled during a backoff.
//
// Only read-only calls go through here, creation is retried by the engine.
func Retry(ctx context.Context, maxAttempts int, fn func() error) error {
	_, err := RetryResult(ctx, maxAttempts, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryResult is like Retry but for functions that return a value.
func RetryResult[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	return RetryResultIf(ctx, maxAttempts, Transient, fn)
}

// RetryResultIf is like RetryResult with a custom retry predicate.
func RetryResultIf[T any](ctx context.Context, maxAttempts int, retryable Retryable, fn func() (T, error)) (T, error) {
	var result T
	var err error
	for i := 0; i < maxAttempts; i++ {
		if result, err = fn(); err == nil {
			return result, nil
		}
		if !retryable(err) {
			return result, err
		}
		if i < maxAttempts-1 {
			select {
			case <-time.After(time.Duration(100*(1<<i)) * time.Millisecond):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}
	return result, err
}
