package ports

import (
	"context"

	"github.com/aretw0/inquiry/pkg/domain"
)

// StepExecutor performs the work of one pipeline step.
//
// Invoke receives a read-only snapshot of the session. Output is step-specific content (free
// text, or a structured object carrying a decision field); Update holds the State fields the
// step wants to write, keyed by their json names. Recoverable problems should be reported in
// Output rather than as an error.
type StepExecutor interface {
	Invoke(ctx context.Context, state *domain.State) (domain.StepResult, error)
}

// ExecutorFunc adapts a function to StepExecutor.
type ExecutorFunc func(ctx context.Context, state *domain.State) (domain.StepResult, error)

// Invoke calls f.
func (f ExecutorFunc) Invoke(ctx context.Context, state *domain.State) (domain.StepResult, error) {
	return f(ctx, state)
}
