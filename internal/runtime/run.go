package runtime

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/aretw0/inquiry/internal/routing"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/google/uuid"
)

// Run starts a session, or re-enters a finished one with new input, and yields one snapshot
// per completed step. The sequence ends at the first suspension, at END, or with an error
// yielded as (nil, err).
func (e *Engine) Run(ctx context.Context, sessionID, input string) iter.Seq2[*domain.State, error] {
	return func(yield func(*domain.State, error) bool) {
		state, err := e.begin(ctx, sessionID, input)
		if err != nil {
			yield(nil, err)
			return
		}
		e.drive(ctx, state, yield)
	}
}

func (e *Engine) begin(ctx context.Context, sessionID, input string) (*domain.State, error) {
	state, err := e.store.Get(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		state = domain.NewState(sessionID, input)
		e.logger.Debug("session created", "session", sessionID)
	case err != nil:
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	case state.Suspended():
		return nil, domain.ErrDecisionRequired
	default:
		state.Normalize()
		if input != "" {
			state.Messages = append(state.Messages, domain.Message{Role: domain.RoleUser, Author: domain.AuthorHuman, Content: input})
		}
		state.Status = domain.StatusActive
		if state.NextStep.Valid() && !state.NextStep.IsTerminal() && !state.NextStep.IsHuman() {
			// Interrupted mid-run: pick up where the last checkpoint left off.
			return state, e.persist(ctx, state)
		}
	}

	e.applyRoute(ctx, state, "", e.routes.Start(state))
	return state, e.persist(ctx, state)
}

// Resume merges a human decision into a suspended session and continues from the step
// that follows the suspension point. The suspended step is not executed again.
func (e *Engine) Resume(ctx context.Context, sessionID string, d domain.HumanDecision) iter.Seq2[*domain.State, error] {
	return func(yield func(*domain.State, error) bool) {
		state, err := e.store.Get(ctx, sessionID)
		if err != nil {
			yield(nil, err)
			return
		}
		choice, err := ResolveDecision(state, d)
		if err != nil {
			yield(nil, err)
			return
		}

		step := state.NextStep
		state.Apply(step, decisionUpdate(step, choice.Value, strings.TrimSpace(d.Text)))
		if step == domain.StepHumanReview && choice.Value == domain.ChoiceRevise {
			// Another analysis round starts from a clean revision count.
			state.NeedsRevision = false
			state.RevisionCount = 0
		}
		state.StepCount++
		state.PendingDecision = false
		state.SuspensionID = ""
		state.Status = domain.StatusActive

		e.emitResume(ctx, &domain.StepEvent{SessionID: sessionID, Step: step, StepCount: state.StepCount})
		e.logger.Debug("session resumed", "session", sessionID, "step", step, "choice", choice.Value)

		if !e.advance(ctx, state, step, yield) {
			return
		}
		e.drive(ctx, state, yield)
	}
}

// ResolveDecision validates d against the prompt of the step state is waiting on.
func ResolveDecision(state *domain.State, d domain.HumanDecision) (domain.Choice, error) {
	if !state.Suspended() {
		return domain.Choice{}, domain.ErrNotSuspended
	}
	prompt, ok := domain.PromptFor(state.NextStep)
	if !ok {
		return domain.Choice{}, fmt.Errorf("%w: %s", domain.ErrUnknownStep, state.NextStep)
	}
	choice, ok := prompt.Resolve(d.Choice)
	if !ok {
		return domain.Choice{}, fmt.Errorf("%w: %q (expected one of %s)", domain.ErrInvalidChoice, d.Choice, strings.Join(prompt.Values(), ", "))
	}
	return choice, nil
}

// decisionUpdate expresses a human choice as the output of the human step.
func decisionUpdate(step domain.StepID, choice, text string) domain.Update {
	u := domain.Update{HumanChoice: domain.String(choice)}
	switch {
	case step == domain.StepHumanChoice && choice == domain.ChoiceRegenerate:
		content := "Regenerate hypothesis."
		if text != "" {
			content += " Areas to modify: " + text
		}
		u.Hypothesis = domain.String("")
		// Guidance rides inside the instruction so a bare "continue" cannot pass for the choice.
		u.CurrentInstruction = domain.String(content)
		u.Messages = []domain.Message{{Role: domain.RoleUser, Author: domain.AuthorHuman, Content: content}}
	case step == domain.StepHumanChoice:
		u.Messages = []domain.Message{{Role: domain.RoleUser, Author: domain.AuthorHuman, Content: "Continue the research process"}}
	case choice == domain.ChoiceRevise:
		if text != "" {
			u.CurrentInstruction = domain.String(text)
			u.Messages = []domain.Message{{Role: domain.RoleUser, Author: domain.AuthorHuman, Content: text}}
		}
	}
	return u
}

// drive executes steps until the session suspends, completes or fails.
func (e *Engine) drive(ctx context.Context, state *domain.State, yield func(*domain.State, error) bool) {
	for steps := 0; ; steps++ {
		if state.Suspended() || state.Completed() {
			return
		}
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		if steps >= e.maxSteps {
			yield(nil, fmt.Errorf("%w: %d steps in session %s", domain.ErrStepLimit, e.maxSteps, state.SessionID))
			return
		}

		step := state.NextStep
		if _, ok := e.executors[step]; !ok {
			yield(nil, fmt.Errorf("%w: no executor for %q", domain.ErrUnknownStep, step))
			return
		}
		e.execute(ctx, state, step)
		if !e.advance(ctx, state, step, yield) {
			return
		}
	}
}

// advance routes after step, persists the checkpoint and yields the snapshot.
// It reports whether the caller should keep going.
func (e *Engine) advance(ctx context.Context, state *domain.State, step domain.StepID, yield func(*domain.State, error) bool) bool {
	route, err := e.routes.After(step, state)
	if err != nil {
		yield(nil, err)
		return false
	}
	e.applyRoute(ctx, state, step, route)

	switch {
	case route.Next.IsHuman():
		e.suspend(ctx, state)
	case route.Next.IsTerminal():
		state.Status = domain.StatusCompleted
		e.logger.Debug("session completed", "session", state.SessionID, "steps", state.StepCount)
	}

	if err := e.persist(ctx, state); err != nil {
		yield(nil, err)
		return false
	}
	return yield(state.Clone(), nil)
}

func (e *Engine) applyRoute(ctx context.Context, state *domain.State, from domain.StepID, route routing.Route) {
	state.NextStep = route.Next
	state.PlanningFailures = route.Failures
	if route.ClearDecision {
		state.HumanChoice = ""
		state.PendingDecision = false
		if state.CurrentInstruction == domain.ChoiceContinue {
			state.CurrentInstruction = ""
		}
	}
	if route.Emergency {
		e.logger.Warn("emergency route", "session", state.SessionID, "from", from, "next", route.Next)
	} else {
		e.logger.Debug("routed", "session", state.SessionID, "from", from, "next", route.Next, "reason", route.Reason)
	}
	e.emitRoute(ctx, &domain.RouteEvent{
		SessionID: state.SessionID,
		From:      from,
		To:        route.Next,
		Emergency: route.Emergency,
		Reason:    route.Reason,
	})
}

func (e *Engine) suspend(ctx context.Context, state *domain.State) {
	state.PendingDecision = true
	state.SuspensionID = uuid.NewString()
	state.Status = domain.StatusSuspended
	e.logger.Debug("session suspended", "session", state.SessionID, "step", state.NextStep)
	e.emitSuspend(ctx, &domain.StepEvent{SessionID: state.SessionID, Step: state.NextStep, StepCount: state.StepCount})
}

func (e *Engine) persist(ctx context.Context, state *domain.State) error {
	state.UpdatedAt = time.Now().UTC()
	if err := e.store.Put(ctx, state.SessionID, state); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", state.SessionID, err)
	}
	return nil
}
