package ports

import (
	"context"
	"errors"
	"time"
)

// ErrLockLost reports that a lease expired and another holder took the key.
var ErrLockLost = errors.New("distributed lock lost")

// Lease is a held distributed lock.
type Lease interface {
	// Extend pushes the expiry out to ttl from now. It returns ErrLockLost when the key
	// no longer belongs to this lease.
	Extend(ctx context.Context, ttl time.Duration) error
	// Release frees the key if this lease still owns it.
	Release(ctx context.Context) error
}

// DistributedLocker coordinates session claims across multiple instances (replicas).
type DistributedLocker interface {
	// TryLock makes a single acquisition attempt and returns domain.ErrRunInProgress
	// when another holder owns the key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
