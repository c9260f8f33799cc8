package utils

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

// RetryPolicy bounds the attempts made by Retry.
type RetryPolicy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// Retry calls fn until it succeeds, the error is not retryable, attempts run out or ctx ends.
// The last error is returned.
func Retry(ctx context.Context, policy RetryPolicy, retryable func(error) bool, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := &backoff.Backoff{
		Min:    policy.MinDelay,
		Max:    policy.MaxDelay,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) || i == attempts-1 {
			return err
		}

		timer := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
