// Package notify fans session notifications out to in-process subscribers.
package notify

import (
	"log/slog"
	"sync"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 32

// Broker handles active subscriptions, keyed by session.
// Publish never blocks: a slow subscriber loses state updates before it loses a
// decision, error or completion notification.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.Notification]struct{} // SessionID -> set of channels
	buffer      int
	logger      *slog.Logger
}

// Option configures the Broker.
type Option func(*Broker)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// NewBroker creates an empty broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		subscribers: make(map[string]map[chan domain.Notification]struct{}),
		buffer:      DefaultBuffer,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a listener for a session. The returned cancel function closes the
// channel and is safe to call more than once.
func (b *Broker) Subscribe(sessionID string) (<-chan domain.Notification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.Notification, b.buffer)
	if _, ok := b.subscribers[sessionID]; !ok {
		b.subscribers[sessionID] = make(map[chan domain.Notification]struct{})
	}
	b.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs, ok := b.subscribers[sessionID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(b.subscribers, sessionID)
		}
	}
}

// Publish delivers n to every subscriber of its session.
func (b *Broker) Publish(n domain.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[n.SessionID] {
		select {
		case ch <- n:
			continue
		default:
		}
		if n.Type == domain.NotifyStateUpdate {
			b.logger.Warn("subscriber buffer full, dropping state update", "session", n.SessionID)
			continue
		}
		// Make room by discarding the oldest queued notification.
		select {
		case old := <-ch:
			b.logger.Warn("subscriber buffer full, dropping oldest notification", "session", n.SessionID, "dropped", old.Type)
		default:
		}
		select {
		case ch <- n:
		default:
			b.logger.Error("failed to deliver notification", "session", n.SessionID, "type", n.Type)
		}
	}
}

// Subscribers reports how many listeners a session has.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[sessionID])
}
