package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerIsExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker(clock.NewSystemClock())

	token, ok, err := l.TryLock(ctx, "catalog:tree:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "catalog:tree:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = l.TryLock(ctx, "catalog:tree:2", time.Minute)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "catalog:tree:1", "someone-else"))
	_, ok, _ = l.TryLock(ctx, "catalog:tree:1", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "catalog:tree:1", token))
	_, ok, _ = l.TryLock(ctx, "catalog:tree:1", time.Minute)
	assert.True(t, ok)
}

func TestLocalLockerLeaseExpires(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewLocalLocker(fake)

	_, ok, _ := l.TryLock(ctx, "k", 30*time.Second)
	require.True(t, ok)

	fake.Advance(30 * time.Second)
	_, ok, _ = l.TryLock(ctx, "k", 30*time.Second)
	assert.True(t, ok)
}

func TestLocalLockerValidates(t *testing.T) {
	l := NewLocalLocker(clock.NewSystemClock())
	_, _, err := l.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, _, err = l.TryLock(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestLocalLockerSingleWinnerUnderContention(t *testing.T) {
	l := NewLocalLocker(clock.NewSystemClock())
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := l.TryLock(context.Background(), "tree", time.Minute); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestNewFallsBackToLocal(t *testing.T) {
	_, ok := New(nil, clock.NewSystemClock()).(*LocalLocker)
	assert.True(t, ok)
}
