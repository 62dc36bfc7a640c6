package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rrfiler/pkg/platform/sentinel"
)

func TestInMemoryLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails fast while held", func(t *testing.T) {
		l := NewInMemory(time.Minute)
		lease, err := l.Acquire(ctx, "sub-1", 0)
		require.NoError(t, err)

		_, err = l.Acquire(ctx, "sub-1", 0)
		assert.ErrorIs(t, err, sentinel.ErrLocked)

		_, err = l.Acquire(ctx, "sub-2", 0)
		assert.NoError(t, err, "keys are independent")

		require.NoError(t, lease.Release(ctx))
		_, err = l.Acquire(ctx, "sub-1", 0)
		assert.NoError(t, err)
	})

	t.Run("waiter acquires after release", func(t *testing.T) {
		l := NewInMemory(time.Minute)
		lease, err := l.Acquire(ctx, "sub-1", 0)
		require.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = lease.Release(ctx)
		}()
		_, err = l.Acquire(ctx, "sub-1", time.Second)
		assert.NoError(t, err)
	})

	t.Run("expired lease is taken over and stale release is a no-op", func(t *testing.T) {
		now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
		l := NewInMemory(time.Minute)
		l.clock = func() time.Time { return now }

		stale, err := l.Acquire(ctx, "sub-1", 0)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = l.Acquire(ctx, "sub-1", 0)
		require.NoError(t, err)

		require.NoError(t, stale.Release(ctx))
		_, err = l.Acquire(ctx, "sub-1", 0)
		assert.ErrorIs(t, err, sentinel.ErrLocked, "stale release must not free the new holder")
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		l := NewInMemory(time.Minute)
		_, err := l.Acquire(ctx, "sub-1", 0)
		require.NoError(t, err)

		cctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = l.Acquire(cctx, "sub-1", time.Minute)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("mutual exclusion under contention", func(t *testing.T) {
		l := NewInMemory(time.Minute)
		var inside, maxInside atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				lease, err := l.Acquire(ctx, "shared", 5*time.Second)
				if err != nil {
					return
				}
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				_ = lease.Release(ctx)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxInside.Load())
	})
}
