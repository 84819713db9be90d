// Package coordinator turns the engine's snapshot stream into caller notifications.
package coordinator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
)

// Publisher delivers notifications to whoever listens for a session.
type Publisher interface {
	Publish(n domain.Notification)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(n domain.Notification)

// Publish calls f(n).
func (f PublisherFunc) Publish(n domain.Notification) {
	f(n)
}

// Outcome summarizes a drained run.
type Outcome struct {
	Last      *domain.State
	Steps     int
	Suspended bool
	Completed bool
}

// Coordinator watches runs and announces each suspension exactly once.
type Coordinator struct {
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	announced map[string]string // session -> last announced suspension id
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New creates a coordinator publishing to pub.
func New(pub Publisher, opts ...Option) *Coordinator {
	c := &Coordinator{
		pub:       pub,
		logger:    logging.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
		announced: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Drain consumes seq in order. Every snapshot is published as a state update; the first
// snapshot waiting on a human decision that has not been announced yet produces one
// decision_required notification and ends the drain.
func (c *Coordinator) Drain(ctx context.Context, sessionID string, seq iter.Seq2[*domain.State, error]) (Outcome, error) {
	var out Outcome
	lastCount := -1

	for snap, err := range seq {
		if err != nil {
			c.publish(domain.Notification{Type: domain.NotifyRunError, SessionID: sessionID, Message: err.Error()})
			c.logger.Error("run failed", "session", sessionID, "err", err)
			return out, err
		}
		if snap.StepCount <= lastCount {
			err := fmt.Errorf("snapshot out of order for session %s: step %d after %d", sessionID, snap.StepCount, lastCount)
			c.publish(domain.Notification{Type: domain.NotifyRunError, SessionID: sessionID, Message: err.Error()})
			return out, err
		}
		lastCount = snap.StepCount
		out.Last = snap
		out.Steps++

		c.publish(domain.Notification{Type: domain.NotifyStateUpdate, SessionID: sessionID, Step: snap.LastActiveStep, Snapshot: snap})

		if snap.Suspended() {
			out.Suspended = true
			if c.markAnnounced(sessionID, snap.SuspensionID) {
				prompt, _ := domain.PromptFor(snap.NextStep)
				c.publish(domain.Notification{
					Type:      domain.NotifyDecisionRequired,
					SessionID: sessionID,
					Step:      snap.NextStep,
					Prompt:    prompt.Render(),
					Choices:   prompt.Choices,
				})
				c.logger.Info("decision required", "session", sessionID, "step", snap.NextStep)
			}
			return out, nil
		}
		if snap.Completed() {
			c.publish(domain.Notification{Type: domain.NotifyRunCompleted, SessionID: sessionID, Snapshot: snap})
			out.Completed = true
			return out, nil
		}
	}
	return out, ctx.Err()
}

// Forget drops the announcement record of a session, e.g. after it was deleted.
func (c *Coordinator) Forget(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.announced, sessionID)
}

// markAnnounced records the suspension and reports whether it is new.
func (c *Coordinator) markAnnounced(sessionID, suspensionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.announced[sessionID] == suspensionID {
		return false
	}
	c.announced[sessionID] = suspensionID
	return true
}

func (c *Coordinator) publish(n domain.Notification) {
	if c.pub == nil {
		return
	}
	n.Timestamp = c.now()
	c.pub.Publish(n)
}
