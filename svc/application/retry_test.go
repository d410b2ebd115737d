package application_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageroute/castflow/svc/application"
)

func TestBackoff_Delay(t *testing.T) {
	t.Parallel()

	b := application.Backoff{Base: 10 * time.Millisecond, Factor: 2, Max: 50 * time.Millisecond}
	assert.Equal(t, time.Duration(0), b.Delay(0))
	assert.Equal(t, 10*time.Millisecond, b.Delay(1))
	assert.Equal(t, 20*time.Millisecond, b.Delay(2))
	assert.Equal(t, 40*time.Millisecond, b.Delay(3))
	assert.Equal(t, 50*time.Millisecond, b.Delay(4))
	assert.Equal(t, time.Duration(0), application.Backoff{}.Delay(3))
}

func TestRetryOnConflict(t *testing.T) {
	t.Parallel()
	fast := application.Backoff{Base: time.Millisecond, Factor: 1}

	t.Run("retries conflicts until success", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := application.RetryOnConflict(context.Background(), 3, fast, func(context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("save: %w", application.ErrConcurrentModification)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := application.RetryOnConflict(context.Background(), 2, fast, func(context.Context) error {
			calls++
			return application.ErrConcurrentModification
		})
		require.ErrorIs(t, err, application.ErrConcurrentModification)
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors stop immediately", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		calls := 0
		err := application.RetryOnConflict(context.Background(), 5, fast, func(context.Context) error {
			calls++
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		slow := application.Backoff{Base: time.Hour, Factor: 1}
		err := application.RetryOnConflict(ctx, 5, slow, func(context.Context) error {
			cancel()
			return application.ErrConcurrentModification
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, application.ErrConcurrentModification)
	})
}
