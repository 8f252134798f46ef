package shared

import (
	"context"
	"time"
)

// RetryPolicy is a fixed attempt count with a fixed delay between attempts.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	// Retryable decides whether a failed attempt is worth repeating.
	// A nil func retries every error.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. It returns the number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return attempt, err
		}
		if attempt == attempts {
			break
		}
		if sleepErr := SleepWithContext(ctx, p.Delay); sleepErr != nil {
			return attempt, err
		}
	}
	return attempts, err
}

// SleepWithContext waits for d or until ctx is done.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
