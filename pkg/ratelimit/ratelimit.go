// Package ratelimit caps how many requests a key may make per fixed window.
// Counters live in a Store; MemoryStore serves a single instance and
// RedisStore shares counters between replicas.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidLimit  = errors.New("ratelimit.invalid_limit")
	ErrInvalidWindow = errors.New("ratelimit.invalid_window")
	ErrKeyRequired   = errors.New("ratelimit.key_required")
)

// Result is the outcome of one check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is zero for allowed requests.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

// Store counts hits per key. Increment returns the count after adding n and
// the time left until the counter expires; the first hit starts the window.
type Store interface {
	Increment(ctx context.Context, key string, n int, window time.Duration) (count int64, ttl time.Duration, err error)
	Reset(ctx context.Context, key string) error
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

func New(store Store, limit int, window time.Duration) (*Limiter, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return &Limiter{store: store, limit: limit, window: window, now: time.Now}, nil
}

func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN consumes n slots. Denied requests still count, so a client that keeps
// hammering stays blocked until the window ends.
func (l *Limiter) AllowN(ctx context.Context, key string, n int) (Result, error) {
	if key == "" {
		return Result{}, ErrKeyRequired
	}
	count, ttl, err := l.store.Increment(ctx, key, n, l.window)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: increment %q: %w", key, err)
	}
	if ttl <= 0 {
		ttl = l.window
	}
	return Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: max(l.limit-int(count), 0),
		ResetAt:   l.now().Add(ttl),
	}, nil
}

func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}
