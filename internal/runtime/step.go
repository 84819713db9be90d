package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/inquiry/pkg/decision"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
)

// Quality verdict tokens.
const (
	verdictRevision = "REVISION"
	verdictContinue = "CONTINUE"
)

// execute runs one automated step and merges its result into state.
// Executor failures are folded into the trace; they never stop the run.
func (e *Engine) execute(ctx context.Context, state *domain.State, step domain.StepID) {
	event := &domain.StepEvent{SessionID: state.SessionID, Step: step, StepCount: state.StepCount}
	e.emitStepEnter(ctx, event)
	start := time.Now()

	res, err := e.invoke(ctx, e.executors[step], state.Clone())
	var u domain.Update
	if err == nil {
		u, err = e.decode(state.SessionID, step, res)
	}

	if err != nil {
		stepErr := &StepError{Step: step, Cause: err}
		e.logger.Warn("step failed", "session", state.SessionID, "step", step, "err", err)
		u = domain.Update{
			Messages: []domain.Message{{Role: domain.RoleSystem, Author: step.String(), Content: stepErr.Error()}},
		}
		switch step {
		case domain.StepPlanning:
			u.NextStepHint = domain.String("")
		case domain.StepQualityReview:
			// A failed review cannot ask for rework.
			u.NeedsRevision = domain.Bool(false)
		}
		event.Err = stepErr
	}

	state.Apply(step, u)
	state.StepCount++

	event.StepCount = state.StepCount
	event.Duration = time.Since(start)
	e.emitStepLeave(ctx, event)
}

// invoke calls the executor, turning a panic into an error.
func (e *Engine) invoke(ctx context.Context, exec ports.StepExecutor, view *domain.State) (res domain.StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("executor panic", "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return exec.Invoke(ctx, view)
}

// decode filters the raw update by the step's write policy and folds the step output into it.
func (e *Engine) decode(sessionID string, step domain.StepID, res domain.StepResult) (domain.Update, error) {
	raw, dropped := e.writes[step].filter(res.Update)
	if len(dropped) > 0 {
		e.logger.Warn("step wrote fields outside its policy", "session", sessionID, "step", step, "fields", dropped)
	}
	u, err := domain.DecodeUpdate(raw)
	if err != nil {
		return u, err
	}

	switch step {
	case domain.StepPlanning:
		if u.NextStepHint == nil {
			u.NextStepHint = domain.String(decision.Extract(res.Output))
		} else {
			u.NextStepHint = domain.String(decision.Extract(*u.NextStepHint))
		}
		if u.CurrentInstruction == nil {
			if task := decision.Field(res.Output, "task"); task != "" {
				u.CurrentInstruction = domain.String(task)
			}
		}
	case domain.StepQualityReview:
		if u.NeedsRevision == nil {
			u.NeedsRevision = domain.Bool(verdict(res.Output))
		}
		if u.QualityFeedback == nil {
			if fb := decision.Field(res.Output, "feedback"); fb != "" {
				u.QualityFeedback = domain.String(fb)
			}
		}
	case domain.StepHypothesis:
		if u.Hypothesis == nil {
			if text, ok := res.Output.(string); ok && strings.TrimSpace(text) != "" {
				u.Hypothesis = domain.String(strings.TrimSpace(text))
			}
		}
	}

	if len(u.Messages) == 0 {
		if text := outputText(res.Output); text != "" {
			u.Messages = []domain.Message{{Role: domain.RoleAssistant, Author: step.String(), Content: text}}
		}
	}
	return u, nil
}

// verdict reads a quality decision: an explicit needs_revision field, a CONTINUE token,
// or REVISION anywhere in the output. Anything else passes, so every review settles
// needs_revision and a stale request can never hold the loop open.
func verdict(output any) bool {
	if v := decision.Field(output, "needs_revision"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	token := decision.Extract(output)
	if strings.EqualFold(token, verdictContinue) {
		return false
	}
	text := strings.ToUpper(token + " " + outputText(output))
	return strings.Contains(text, verdictRevision)
}

// outputText renders a step output as message content. Structured outputs contribute
// their task, feedback or content field.
func outputText(output any) string {
	if output == nil {
		return ""
	}
	for _, key := range []string{"task", "feedback", "content"} {
		if text := decision.Field(output, key); text != "" {
			return text
		}
	}
	switch v := output.(type) {
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	}
	b, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprint(output)
	}
	return string(b)
}
