package session_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/inquiry/pkg/adapters/redis"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/aretw0/inquiry/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestManager_TryAcquireRejectsConcurrentRun(t *testing.T) {
	manager := session.NewManager()
	ctx := context.Background()

	release, err := manager.TryAcquire(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, manager.Busy("s1"))

	_, err = manager.TryAcquire(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	other, err := manager.TryAcquire(ctx, "s2")
	require.NoError(t, err, "claims are per session")
	other()

	release()
	release()
	assert.False(t, manager.Busy("s1"))

	again, err := manager.TryAcquire(ctx, "s1")
	require.NoError(t, err)
	again()
}

func TestManager_ClaimsAreExclusive(t *testing.T) {
	manager := session.NewManager()
	ctx := context.Background()

	var holders, overlap atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := manager.TryAcquire(ctx, "race-test")
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrRunInProgress)
				return
			}
			if holders.Add(1) > 1 {
				overlap.Add(1)
			}
			time.Sleep(5 * time.Millisecond)
			holders.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Zero(t, overlap.Load(), "one holder at a time")
	assert.False(t, manager.Busy("race-test"))
}

func TestManager_DistributedClaim(t *testing.T) {
	mr, client := newRedis(t)

	// Two managers model two replicas sharing one Redis.
	replicaA := session.NewManager(session.WithLocker(redis.NewLocker(client, "inquiry:")))
	replicaB := session.NewManager(session.WithLocker(redis.NewLocker(client, "inquiry:")))
	ctx := context.Background()

	release, err := replicaA.TryAcquire(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, mr.Exists("inquiry:lock:shared"))

	_, err = replicaB.TryAcquire(ctx, "shared")
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	assert.False(t, replicaB.Busy("shared"), "a rejected claim leaves no local entry")

	release()
	assert.False(t, mr.Exists("inquiry:lock:shared"))

	releaseB, err := replicaB.TryAcquire(ctx, "shared")
	require.NoError(t, err)
	releaseB()
}

func TestManager_RenewsDistributedClaim(t *testing.T) {
	mr, client := newRedis(t)
	ttl := 300 * time.Millisecond
	replicaA := session.NewManager(session.WithLocker(redis.NewLocker(client, "inquiry:")), session.WithLockTTL(ttl))
	replicaB := session.NewManager(session.WithLocker(redis.NewLocker(client, "inquiry:")), session.WithLockTTL(ttl))
	ctx := context.Background()
	key := "inquiry:lock:long-run"

	release, err := replicaA.TryAcquire(ctx, "long-run")
	require.NoError(t, err)

	// Drain most of the TTL on the server clock, then wait for the holder to push it back out.
	mr.FastForward(250 * time.Millisecond)
	assert.Eventually(t, func() bool { return mr.TTL(key) == ttl }, 2*time.Second, 10*time.Millisecond)

	mr.FastForward(250 * time.Millisecond)
	require.True(t, mr.Exists(key), "a renewed claim outlives its first ttl")
	_, err = replicaB.TryAcquire(ctx, "long-run")
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	release()
	assert.False(t, mr.Exists(key))
}

// contendedLocker reports a busy key the way a wrapping locker would.
type contendedLocker struct{}

func (contendedLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	return nil, fmt.Errorf("key %s: %w", key, domain.ErrRunInProgress)
}

func TestManager_WrappedContentionPassesThrough(t *testing.T) {
	manager := session.NewManager(session.WithLocker(contendedLocker{}))

	_, err := manager.TryAcquire(context.Background(), "s1")
	require.ErrorIs(t, err, domain.ErrRunInProgress)
	assert.Equal(t, "key s1: "+domain.ErrRunInProgress.Error(), err.Error(), "contention is not reported as a locker failure")
	assert.False(t, manager.Busy("s1"))
}
