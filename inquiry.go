package inquiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/inquiry/internal/compression"
	"github.com/aretw0/inquiry/internal/coordinator"
	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/internal/routing"
	"github.com/aretw0/inquiry/internal/runtime"
	"github.com/aretw0/inquiry/internal/sanitize"
	"github.com/aretw0/inquiry/pkg/adapters/memory"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/notify"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/aretw0/inquiry/pkg/session"
	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed Pipeline.
var ErrClosed = errors.New("pipeline is closed")

// Input rejected before it reaches a session.
var (
	ErrInputTooLarge = sanitize.ErrInputTooLarge
	ErrInvalidUTF8   = sanitize.ErrInvalidUTF8
)

// Policy tunes the loop-avoidance behavior of the routers.
type Policy = routing.Policy

// Edge is one possible transition of the pipeline topology.
type Edge = routing.Edge

// DefaultPolicy returns the standard loop-avoidance policy.
func DefaultPolicy() Policy {
	return routing.DefaultPolicy()
}

// Pipeline is the high-level entry point of the library.
// It runs every session in its own goroutine and reports progress through the broker.
type Pipeline struct {
	engine      *runtime.Engine
	store       ports.CheckpointStore
	sessions    *session.Manager
	coordinator *coordinator.Coordinator
	broker      *notify.Broker
	logger      *slog.Logger

	// held keeps the final notification of a run until its claim is released,
	// so a subscriber reacting to it never races the claim.
	heldMu sync.Mutex
	held   map[string][]domain.Notification

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type config struct {
	store       ports.CheckpointStore
	locker      ports.DistributedLocker
	broker      *notify.Broker
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	policy      Policy
	maxSteps    int
	compression []compression.Option
}

// Option defines a functional option for configuring the Pipeline.
type Option func(*config)

// WithCheckpointStore sets where session snapshots are persisted. Defaults to memory.
func WithCheckpointStore(store ports.CheckpointStore) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithLocker adds a distributed lock so several processes can share one store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(c *config) {
		c.locker = locker
	}
}

// WithBroker publishes notifications to an existing broker.
func WithBroker(b *notify.Broker) Option {
	return func(c *config) {
		c.broker = b
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = hooks
	}
}

// WithPolicy sets the loop-avoidance policy.
func WithPolicy(p Policy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithMaxSteps bounds the steps executed per run.
func WithMaxSteps(n int) Option {
	return func(c *config) {
		c.maxSteps = n
	}
}

// WithCompression tunes when the Compression step summarizes the trace and how many
// messages it keeps verbatim at each end. Zero values keep the defaults.
func WithCompression(threshold, keepHead, keepTail int) Option {
	return func(c *config) {
		if threshold > 0 {
			c.compression = append(c.compression, compression.WithThreshold(threshold))
		}
		if keepHead > 0 || keepTail > 0 {
			head, tail := keepHead, keepTail
			if head <= 0 {
				head = compression.DefaultKeepHead
			}
			if tail <= 0 {
				tail = compression.DefaultKeepTail
			}
			c.compression = append(c.compression, compression.WithWindow(head, tail))
		}
	}
}

// New validates the step table and builds a Pipeline.
// Every automated step needs an executor; the Compression executor is the summarizer
// and only runs once the trace outgrows the compression threshold.
func New(executors map[domain.StepID]ports.StepExecutor, opts ...Option) (*Pipeline, error) {
	cfg := &config{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	if cfg.store == nil {
		cfg.store = memory.NewStore()
	}
	if cfg.broker == nil {
		cfg.broker = notify.NewBroker(notify.WithLogger(cfg.logger))
	}

	table := make(map[domain.StepID]ports.StepExecutor, len(executors))
	for id, exec := range executors {
		table[id] = exec
	}
	if summarizer, ok := table[domain.StepCompression]; ok && summarizer != nil {
		table[domain.StepCompression] = compression.New(summarizer, append([]compression.Option{compression.WithLogger(cfg.logger)}, cfg.compression...)...)
	}

	engine, err := runtime.NewEngine(table,
		runtime.WithCheckpointStore(cfg.store),
		runtime.WithPolicy(cfg.policy),
		runtime.WithMaxSteps(cfg.maxSteps),
		runtime.WithLifecycleHooks(cfg.hooks),
		runtime.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	sessionOpts := []session.Option{session.WithLogger(cfg.logger)}
	if cfg.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(cfg.locker))
	}

	p := &Pipeline{
		engine:   engine,
		store:    cfg.store,
		sessions: session.NewManager(sessionOpts...),
		broker:   cfg.broker,
		logger:   cfg.logger,
		held:     make(map[string][]domain.Notification),
	}
	p.coordinator = coordinator.New(coordinator.PublisherFunc(p.publish), coordinator.WithLogger(cfg.logger))
	return p, nil
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Start submits the first input of a new session and returns its generated id.
func (p *Pipeline) Start(ctx context.Context, input string) (string, error) {
	id := NewSessionID()
	return id, p.Submit(ctx, id, input)
}

// Submit hands input to a session and runs it in the background until it needs a
// decision or reaches END.
//
// A new session starts at Hypothesis; a completed session appends the input and is routed
// again from the entry. It returns domain.ErrDecisionRequired for a suspended session and
// domain.ErrRunInProgress while a run is in flight.
func (p *Pipeline) Submit(ctx context.Context, sessionID, input string) error {
	input, err := sanitize.Input(input)
	if err != nil {
		return err
	}
	release, err := p.claim(ctx, sessionID)
	if err != nil {
		return err
	}

	state, err := p.store.Get(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
	case err != nil:
		release()
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	case state.Suspended():
		release()
		return domain.ErrDecisionRequired
	}

	p.spawn(ctx, sessionID, release, func(ctx context.Context) {
		_, _ = p.coordinator.Drain(ctx, sessionID, p.engine.Run(ctx, sessionID, input))
	})
	return nil
}

// Decide answers the decision a suspended session is waiting on and resumes it in the
// background. The decision is validated before this returns: domain.ErrNotSuspended and
// domain.ErrInvalidChoice are reported synchronously.
func (p *Pipeline) Decide(ctx context.Context, sessionID string, d domain.HumanDecision) error {
	text, err := sanitize.Input(d.Text)
	if err != nil {
		return err
	}
	d.Text = text
	release, err := p.claim(ctx, sessionID)
	if err != nil {
		return err
	}

	state, err := p.store.Get(ctx, sessionID)
	if err != nil {
		release()
		return err
	}
	if _, err := runtime.ResolveDecision(state, d); err != nil {
		release()
		return err
	}

	p.spawn(ctx, sessionID, release, func(ctx context.Context) {
		_, _ = p.coordinator.Drain(ctx, sessionID, p.engine.Resume(ctx, sessionID, d))
	})
	return nil
}

// Subscribe returns the notifications of a session. Call cancel to stop listening.
func (p *Pipeline) Subscribe(sessionID string) (<-chan domain.Notification, func()) {
	return p.broker.Subscribe(sessionID)
}

// Inspect returns the latest persisted snapshot of a session.
func (p *Pipeline) Inspect(ctx context.Context, sessionID string) (*domain.State, error) {
	return p.store.Get(ctx, sessionID)
}

// Sessions lists the ids of every persisted session.
func (p *Pipeline) Sessions(ctx context.Context) ([]string, error) {
	return p.store.List(ctx)
}

// Running reports whether a run is in flight for the session in this process.
func (p *Pipeline) Running(sessionID string) bool {
	return p.sessions.Busy(sessionID)
}

// Reset deletes a session. It fails with domain.ErrRunInProgress while a run is in flight.
func (p *Pipeline) Reset(ctx context.Context, sessionID string) error {
	release, err := p.sessions.TryAcquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	if _, err := p.store.Get(ctx, sessionID); err != nil {
		return err
	}
	if err := p.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	p.coordinator.Forget(sessionID)
	p.logger.Info("session reset", "session", sessionID)
	return nil
}

// Graph returns the pipeline topology.
func (p *Pipeline) Graph() []Edge {
	return p.engine.Topology()
}

// Broker returns the broker notifications are published to.
func (p *Pipeline) Broker() *notify.Broker {
	return p.broker
}

// Close stops accepting input and waits for in-flight runs to finish.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *Pipeline) claim(ctx context.Context, sessionID string) (session.ReleaseFunc, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	release, err := p.sessions.TryAcquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	p.wg.Add(1)
	return func() {
		release()
		p.wg.Done()
	}, nil
}

// spawn runs fn detached from the caller's cancellation, holding the session claim.
func (p *Pipeline) spawn(ctx context.Context, sessionID string, release session.ReleaseFunc, fn func(context.Context)) {
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer p.flush(sessionID)
		defer release()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("run panicked", "session", sessionID, "err", r)
				p.hold(domain.Notification{Type: domain.NotifyRunError, SessionID: sessionID, Message: fmt.Sprintf("panic: %v", r)})
			}
		}()
		fn(runCtx)
	}()
}

// publish forwards progress at once and holds the notification that ends a run.
func (p *Pipeline) publish(n domain.Notification) {
	if n.Type == domain.NotifyStateUpdate {
		p.broker.Publish(n)
		return
	}
	p.hold(n)
}

func (p *Pipeline) hold(n domain.Notification) {
	p.heldMu.Lock()
	defer p.heldMu.Unlock()
	p.held[n.SessionID] = append(p.held[n.SessionID], n)
}

func (p *Pipeline) flush(sessionID string) {
	p.heldMu.Lock()
	pending := p.held[sessionID]
	delete(p.held, sessionID)
	p.heldMu.Unlock()

	for _, n := range pending {
		p.broker.Publish(n)
	}
}
