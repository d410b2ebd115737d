package application

import (
	"context"
	"errors"
	"math"
	"time"
)

// Backoff computes exponential delays between retries.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

var DefaultBackoff = Backoff{Base: 20 * time.Millisecond, Factor: 2, Max: 500 * time.Millisecond}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 || attempt < 1 {
		return 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := time.Duration(float64(b.Base) * math.Pow(factor, float64(attempt-1)))
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// RetryOnConflict calls fn up to attempts times while it fails with
// ErrConcurrentModification, sleeping b.Delay between calls. Any other error,
// or a cancelled ctx, stops immediately.
func RetryOnConflict(ctx context.Context, attempts int, b Backoff, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, ErrConcurrentModification) || attempt == attempts {
			return err
		}
		timer := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
