package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
// Live holders renew it every third of the TTL.
const DefaultLockTTL = 10 * time.Minute

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// ReleaseFunc ends a claim obtained through TryAcquire. It is safe to call more than once.
type ReleaseFunc func()

// Manager owns per-session access, ensuring a session is mutated by one holder at a time.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiration of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// TryAcquire claims the session without waiting. A second claim on a busy session fails with
// domain.ErrRunInProgress until the first holder calls the returned ReleaseFunc.
func (m *Manager) TryAcquire(ctx context.Context, sessionID string) (ReleaseFunc, error) {
	entry := m.acquire(sessionID)
	if !entry.mu.TryLock() {
		m.release(sessionID)
		return nil, domain.ErrRunInProgress
	}

	var lease ports.Lease
	stopRenew := func() {}
	if m.locker != nil {
		var err error
		lease, err = m.locker.TryLock(ctx, sessionID, m.lockTTL)
		if err != nil {
			entry.mu.Unlock()
			m.release(sessionID)
			if errors.Is(err, domain.ErrRunInProgress) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		stopRenew = m.renew(sessionID, lease)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			stopRenew()
			if lease != nil {
				if err := lease.Release(context.Background()); err != nil {
					m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
						"session", sessionID,
						"err", err,
					)
				}
			}
			entry.mu.Unlock()
			m.release(sessionID)
		})
	}, nil
}

// renew extends lease every third of the TTL until the returned stop function is called.
// stop waits for an in-flight extension so the release that follows cannot be overtaken.
func (m *Manager) renew(sessionID string, lease ports.Lease) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(max(m.lockTTL/3, time.Millisecond))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := lease.Extend(ctx, m.lockTTL)
			switch {
			case err == nil:
			case errors.Is(err, ports.ErrLockLost):
				m.logger.Error("Distributed lock lost, another replica may claim the session",
					"session", sessionID,
				)
				return
			case ctx.Err() != nil:
				return
			default:
				m.logger.Warn("Failed to renew distributed lock",
					"session", sessionID,
					"err", err,
				)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Busy reports whether someone holds or waits for the session.
func (m *Manager) Busy(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.locks[sessionID]
	return exists
}
