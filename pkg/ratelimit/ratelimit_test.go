package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageroute/castflow/pkg/ratelimit"
)

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := ratelimit.New(ratelimit.NewMemoryStore(), 0, time.Second)
	require.ErrorIs(t, err, ratelimit.ErrInvalidLimit)
	_, err = ratelimit.New(ratelimit.NewMemoryStore(), 1, 0)
	require.ErrorIs(t, err, ratelimit.ErrInvalidWindow)
}

func TestLimiter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, err := ratelimit.New(ratelimit.NewMemoryStore(), 2, time.Minute)
	require.NoError(t, err)

	for i, want := range []bool{true, true, false} {
		res, err := l.Allow(ctx, "actor-1")
		require.NoError(t, err)
		assert.Equal(t, want, res.Allowed, "request %d", i)
	}

	other, err := l.Allow(ctx, "actor-2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")
	assert.Equal(t, 1, other.Remaining)

	require.NoError(t, l.Reset(ctx, "actor-1"))
	res, err := l.Allow(ctx, "actor-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, err = l.Allow(ctx, "")
	require.ErrorIs(t, err, ratelimit.ErrKeyRequired)
}

func TestResultRetryAfter(t *testing.T) {
	t.Parallel()
	now := time.Now()
	assert.Zero(t, ratelimit.Result{Allowed: true, ResetAt: now.Add(time.Minute)}.RetryAfter(now))
	assert.Equal(t, time.Minute, ratelimit.Result{ResetAt: now.Add(time.Minute)}.RetryAfter(now))
}

type brokenStore struct{}

func (brokenStore) Increment(context.Context, string, int, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func (brokenStore) Reset(context.Context, string) error { return nil }

func TestMiddleware(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	request := func(actor string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/bulk", nil)
		if actor != "" {
			r.Header.Set("X-Actor-ID", actor)
		}
		return r
	}

	t.Run("blocks over the limit", func(t *testing.T) {
		t.Parallel()
		l, err := ratelimit.New(ratelimit.NewMemoryStore(), 1, time.Minute)
		require.NoError(t, err)
		h := ratelimit.Middleware(l, ratelimit.ByHeader("bulk", "X-Actor-ID"), nil)(ok)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("a"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, request("a"))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.JSONEq(t, `{"error":{"code":"rate_limited","message":"too many requests"}}`, rec.Body.String())
	})

	t.Run("skips requests without a key", func(t *testing.T) {
		t.Parallel()
		l, err := ratelimit.New(ratelimit.NewMemoryStore(), 1, time.Minute)
		require.NoError(t, err)
		h := ratelimit.Middleware(l, ratelimit.ByHeader("bulk", "X-Actor-ID"), nil)(ok)
		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, request(""))
			assert.Equal(t, http.StatusNoContent, rec.Code)
		}
	})

	t.Run("fails open", func(t *testing.T) {
		t.Parallel()
		l, err := ratelimit.New(brokenStore{}, 1, time.Minute)
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		ratelimit.Middleware(l, ratelimit.ByHeader("bulk", "X-Actor-ID"), nil)(ok).ServeHTTP(rec, request("a"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
