package ports

import (
	"context"

	"github.com/aretw0/inquiry/pkg/domain"
)

// CheckpointStore persists the State record of each workflow session.
// This allows for durable execution: a suspended session resumes from its last checkpoint.
type CheckpointStore interface {
	// Put persists the state for a given session ID.
	Put(ctx context.Context, sessionID string, state *domain.State) error

	// Get retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Get(ctx context.Context, sessionID string) (*domain.State, error)

	// NextStep returns the step the engine would run next if the session were resumed.
	// It returns "" for a completed session and domain.ErrSessionNotFound for an unknown one.
	NextStep(ctx context.Context, sessionID string) (domain.StepID, error)

	// Delete removes the state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns all active session IDs.
	List(ctx context.Context) ([]string, error)
}

// NextStepOf derives the resume point from a persisted record.
func NextStepOf(state *domain.State) domain.StepID {
	if state == nil || state.Completed() || state.NextStep.IsTerminal() {
		return ""
	}
	return state.NextStep
}
