// Package runtime drives the research pipeline over its fixed step graph.
package runtime

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/internal/routing"
	"github.com/aretw0/inquiry/pkg/adapters/memory"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
)

// DefaultMaxSteps bounds the number of steps a single Run or Resume may execute.
const DefaultMaxSteps = 3000

// Engine is the pipeline state machine runner.
// It owns the step table and the router set; it holds no per-session state.
type Engine struct {
	executors map[domain.StepID]ports.StepExecutor
	routes    *routing.Set
	policy    routing.Policy
	store     ports.CheckpointStore
	writes    map[domain.StepID]writePolicy
	maxSteps  int
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithCheckpointStore sets where snapshots are persisted. Defaults to an in-memory store.
func WithCheckpointStore(store ports.CheckpointStore) EngineOption {
	return func(e *Engine) {
		if store != nil {
			e.store = store
		}
	}
}

// WithPolicy sets the loop-avoidance policy of the routers.
func WithPolicy(p routing.Policy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithMaxSteps bounds the steps executed per Run or Resume.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds the step table. Every automated step needs an executor; human steps
// are resolved by decisions and must not have one. Unknown ids are rejected.
func NewEngine(executors map[domain.StepID]ports.StepExecutor, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		executors: make(map[domain.StepID]ports.StepExecutor, len(executors)),
		policy:    routing.DefaultPolicy(),
		store:     memory.NewStore(),
		writes:    defaultWritePolicies(),
		maxSteps:  DefaultMaxSteps,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for id, exec := range executors {
		switch {
		case !id.Valid() || id.IsTerminal():
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStep, id)
		case id.IsHuman():
			return nil, fmt.Errorf("%w: %s is resolved by human decisions", domain.ErrUnknownStep, id)
		case exec == nil:
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingExecutor, id)
		}
		e.executors[id] = exec
	}
	for _, id := range domain.Steps() {
		if id.IsHuman() || id.IsTerminal() {
			continue
		}
		if _, ok := e.executors[id]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingExecutor, id)
		}
	}

	e.routes = routing.NewSet(e.policy)
	return e, nil
}

// Store returns the checkpoint store the engine persists to.
func (e *Engine) Store() ports.CheckpointStore {
	return e.store
}

// Topology returns every edge the engine can take.
func (e *Engine) Topology() []routing.Edge {
	return routing.Edges()
}

// StepError records an executor failure. It is reported through hooks and the
// message trace; it never aborts a run.
type StepError struct {
	Step  domain.StepID
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}
