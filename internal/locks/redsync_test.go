package locks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/redis"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)

	client, err := redis.NewClient(&redis.Config{Address: s.Addr()}, nil)
	require.NoError(t, err)

	manager, err := NewManager(client, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		manager.Close()
		client.Close()
		s.Close()
	})
	return manager, s
}

func TestNewManager_RequiresClient(t *testing.T) {
	manager, err := NewManager(nil, nil)
	assert.Error(t, err)
	assert.Nil(t, manager)
}

func TestManager_AcquireAndRelease(t *testing.T) {
	manager, s := newTestManager(t)
	ctx := context.Background()

	lock, err := manager.AcquireLock(ctx, "cache-warmup", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "cache-warmup", lock.Key())
	assert.True(t, lock.IsHeld())
	assert.True(t, s.Exists("lock:cache-warmup"))

	require.NoError(t, lock.Release(ctx))
	assert.False(t, lock.IsHeld())
	assert.False(t, s.Exists("lock:cache-warmup"))
	assert.NoError(t, lock.Release(ctx), "release is idempotent")
}

func TestManager_Contention(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	first, err := manager.AcquireLock(ctx, "cache-warmup", 30*time.Second)
	require.NoError(t, err)

	second, err := manager.AcquireLock(ctx, "cache-warmup", 30*time.Second)
	assert.True(t, errors.Is(err, ErrLockHeld))
	assert.Nil(t, second)

	require.NoError(t, first.Release(ctx))
	third, err := manager.AcquireLock(ctx, "cache-warmup", 30*time.Second)
	require.NoError(t, err)
	third.Release(ctx)
}

func TestManager_RunExclusive(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	var runs int32
	ran, err := manager.RunExclusive(ctx, "cache-warmup", time.Minute, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	held, err := manager.AcquireLock(ctx, "cache-warmup", time.Minute)
	require.NoError(t, err)
	defer held.Release(ctx)

	ran, err = manager.RunExclusive(ctx, "cache-warmup", time.Minute, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	assert.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestManager_RunExclusivePropagatesError(t *testing.T) {
	manager, s := newTestManager(t)
	boom := errors.New("warmup failed")

	ran, err := manager.RunExclusive(context.Background(), "cache-warmup", time.Minute, func(context.Context) error {
		return boom
	})
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Exists("lock:cache-warmup"), "lock is released after a failed job")
}

func TestManager_CloseReleasesLocks(t *testing.T) {
	manager, s := newTestManager(t)

	lock, err := manager.AcquireLock(context.Background(), "a", time.Minute)
	require.NoError(t, err)

	require.NoError(t, manager.Close())
	assert.False(t, lock.IsHeld())
	assert.False(t, s.Exists("lock:a"))
}
