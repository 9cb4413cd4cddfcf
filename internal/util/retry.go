package util

import (
	"context"
	"time"
)

// RetryIf runs fn until it succeeds, returns an error retryable rejects, or
// maxAttempts calls have been made. The pause before attempt k+1 is
// baseDelay<<k. A nil retryable treats every error as transient.
func RetryIf(ctx context.Context, maxAttempts int, baseDelay time.Duration, retryable func(error) bool, fn func() error) error {
	err := fn()
	for attempt := 1; err != nil && attempt < maxAttempts; attempt++ {
		if retryable != nil && !retryable(err) {
			return err
		}

		t := time.NewTimer(baseDelay << (attempt - 1))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		err = fn()
	}
	return err
}
