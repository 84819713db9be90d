package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/inquiry/pkg/adapters/redis"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockRelease(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	lease, err := locker.TryLock(ctx, "resource1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:resource1"), "Lock key should be set in Redis")

	assert.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("test:lock:resource1"), "Lock key should be removed after release")
}

func TestRedisLocker_TryLockContention(t *testing.T) {
	_, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()

	lease1, err := locker1.TryLock(ctx, "session", 5*time.Second)
	require.NoError(t, err)

	_, err = locker2.TryLock(ctx, "session", 5*time.Second)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	assert.NoError(t, lease1.Release(ctx))

	lease2, err := locker2.TryLock(ctx, "session", 5*time.Second)
	require.NoError(t, err)
	assert.NoError(t, lease2.Release(ctx))
}

func TestRedisLocker_ExtendResetsExpiry(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	lease, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(800 * time.Millisecond)
	require.NoError(t, lease.Extend(ctx, time.Second))
	assert.Equal(t, time.Second, mr.TTL("test:lock:k"))

	mr.FastForward(800 * time.Millisecond)
	assert.True(t, mr.Exists("test:lock:k"), "an extended lock outlives its first ttl")

	_, err = locker.TryLock(ctx, "k", time.Second)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	assert.NoError(t, lease.Release(ctx))
}

func TestRedisLocker_ExtendAfterExpiry(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	lease, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	other, err := locker.TryLock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, lease.Extend(ctx, time.Second), ports.ErrLockLost)
	assert.Equal(t, 5*time.Second, mr.TTL("test:lock:k"), "a lost lease must not touch the new holder's expiry")
	assert.NoError(t, other.Release(ctx))
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	lease, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)

	// Simulate expiry followed by another holder.
	mr.FastForward(2 * time.Second)
	other, err := locker.TryLock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	assert.NoError(t, lease.Release(ctx))
	assert.True(t, mr.Exists("test:lock:k"), "stale release must not free the new holder's lock")
	assert.NoError(t, other.Release(ctx))
}
