package memory

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds how callers retry transient adapter failures.
// Backends report transient conditions by wrapping ErrUnavailable; the
// retry loop lives with the caller so backends stay retry-free.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	// Values below one are treated as one.
	Attempts int

	// BaseDelay is the wait before the first retry. Each further retry
	// doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the stock policy used by the pipeline stages.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  5,
		BaseDelay: 200 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

// Do runs fn, retrying with jittered exponential backoff while it returns
// an error wrapping ErrUnavailable. Success, any other error, or context
// cancellation during backoff stops the loop immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := max(p.Attempts, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay(attempt)):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		if !errors.Is(err, ErrUnavailable) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// delay computes the backoff before the given retry, with up to half the
// step added as jitter so concurrent workers do not retry in lockstep.
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}

	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 {
		d = min(d, p.MaxDelay)
	}

	if half := d / 2; half > 0 {
		d += rand.N(half)
	}

	return d
}
