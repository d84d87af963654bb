package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockAndRelease(t *testing.T) {
	c, _ := newTestCache(t)
	locks := NewLocks(c)
	ctx := context.Background()

	unlock, ok, err := locks.TryLock(ctx, "job_lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Second acquisition loses while the lock is held.
	_, ok, err = locks.TryLock(ctx, "job_lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, unlock(ctx))

	// Released; acquirable again.
	_, ok, err = locks.TryLock(ctx, "job_lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockExpiresAfterTTL(t *testing.T) {
	c, mr := newTestCache(t)
	locks := NewLocks(c)
	ctx := context.Background()

	_, ok, err := locks.TryLock(ctx, "job_lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(time.Minute + time.Second)

	_, ok, err = locks.TryLock(ctx, "job_lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStaleUnlockDoesNotReleaseNewHolder(t *testing.T) {
	c, mr := newTestCache(t)
	locks := NewLocks(c)
	ctx := context.Background()

	staleUnlock, ok, err := locks.TryLock(ctx, "job_lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// The first holder's lease expires and a second holder takes over.
	mr.FastForward(time.Minute + time.Second)
	_, ok, err = locks.TryLock(ctx, "job_lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// The stale unlock must not free the new holder's lock.
	require.NoError(t, staleUnlock(ctx))
	_, ok, err = locks.TryLock(ctx, "job_lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndependentLockKeys(t *testing.T) {
	c, _ := newTestCache(t)
	locks := NewLocks(c)
	ctx := context.Background()

	_, ok, err := locks.TryLock(ctx, "worker_lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locks.TryLock(ctx, "repair_lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
