package gecko

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls one class of retryable failure. The client composes
// two independent policies: one for HTTP 429 responses and one for transport
// errors, so the two can be tuned separately.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second try; it doubles each retry.
	BaseDelay time.Duration
	// MaxDelay caps the per-retry wait. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the upstream provider's documented guidance:
// five attempts starting at a 3-second delay, doubling each time.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   3 * time.Second,
	}
}

// delays returns a fresh backoff sequence for one request. Randomization is
// disabled so the schedule is exactly base, 2*base, 4*base, ...
func (p RetryPolicy) delays() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	} else {
		b.MaxInterval = p.BaseDelay << uint(p.MaxAttempts)
	}
	b.Reset()
	return b
}

// sleep waits for d, aborting early if ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
