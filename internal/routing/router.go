// Package routing holds the pure routing decisions of the research pipeline.
//
// Each Router reads a state snapshot and returns a Route; it never mutates the state.
// The engine applies the Route's side effects (failure counter, decision clearing).
package routing

import (
	"strings"

	"github.com/aretw0/inquiry/pkg/decision"
	"github.com/aretw0/inquiry/pkg/domain"
)

// DefaultFailureThreshold is the number of consecutive Planning fall-backs tolerated
// before an emergency route.
const DefaultFailureThreshold = 3

// Route is the outcome of a routing decision.
type Route struct {
	Next StepID

	// Failures is the Planning failure counter after this decision.
	Failures int
	// Emergency marks a forced route taken to break a Planning loop.
	Emergency bool
	// ClearDecision asks the engine to drop consumed human decision flags.
	ClearDecision bool
	// Reason is a short human-readable explanation, used in logs and hooks.
	Reason string
}

// StepID is re-exported for brevity inside route tables.
type StepID = domain.StepID

// Router decides the next step from the current state.
type Router interface {
	Route(s *domain.State) Route
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(s *domain.State) Route

// Route calls f(s).
func (f RouterFunc) Route(s *domain.State) Route {
	return f(s)
}

// Static always routes to next, carrying the failure counter over.
func Static(next StepID) Router {
	return RouterFunc(func(s *domain.State) Route {
		return Route{Next: next, Failures: s.PlanningFailures, Reason: "static edge"}
	})
}

// Policy tunes the loop-avoidance behavior of the routers.
type Policy struct {
	// FailureThreshold bounds consecutive Planning self-routes. Zero means DefaultFailureThreshold.
	FailureThreshold int
	// Fallback is the worker taken on an emergency route. Empty means Coder.
	Fallback StepID
	// MaxRevisions caps consecutive rework rounds before moving to Refinement. Zero disables the cap.
	MaxRevisions int
}

// DefaultPolicy returns the standard loop-avoidance policy.
func DefaultPolicy() Policy {
	return Policy{FailureThreshold: DefaultFailureThreshold, Fallback: domain.StepCoder}
}

func (p Policy) threshold() int {
	if p.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return p.FailureThreshold
}

func (p Policy) fallback() StepID {
	if p.Fallback.IsWorker() {
		return p.Fallback
	}
	return domain.StepCoder
}

// Entry routes at the start of a run and after the HumanChoice decision.
func Entry() Router {
	return RouterFunc(func(s *domain.State) Route {
		if s.HumanChoice == domain.ChoiceContinue || s.CurrentInstruction == domain.ChoiceContinue {
			return Route{
				Next:          domain.StepPlanning,
				Failures:      s.PlanningFailures,
				ClearDecision: true,
				Reason:        "human chose to continue",
			}
		}
		if s.Hypothesis == "" {
			return Route{Next: domain.StepHypothesis, Failures: s.PlanningFailures, ClearDecision: s.HumanChoice != "", Reason: "no hypothesis yet"}
		}
		return Route{Next: domain.StepPlanning, Failures: s.PlanningFailures, ClearDecision: s.HumanChoice != "", Reason: "hypothesis present"}
	})
}

// Planning routes on the decision token the Planning step left in next_step_hint, read
// through the decision extractor so `{'next': 'Coder'}` and `next: Coder` are honored.
// At most threshold consecutive calls return Planning; the next one is an emergency route.
func Planning(p Policy) Router {
	return RouterFunc(func(s *domain.State) Route {
		hint := decision.Extract(s.NextStepHint)
		if step, ok := domain.ParseStepID(hint); ok && step.IsWorker() {
			return Route{Next: step, Reason: "planned " + step.String()}
		}
		if isFinish(hint) {
			return Route{Next: domain.StepRefinement, Reason: "planning finished"}
		}

		if s.PlanningFailures >= p.threshold() {
			return Route{
				Next:      p.fallback(),
				Emergency: true,
				Reason:    "emergency route after repeated planning failures",
			}
		}
		reason := "no planning decision"
		if s.NextStepHint != "" {
			reason = "unknown planning decision " + s.NextStepHint
		}
		return Route{Next: domain.StepPlanning, Failures: s.PlanningFailures + 1, Reason: reason}
	})
}

// Quality routes after a quality review: back to the last worker on revision,
// forward to Compression otherwise.
func Quality(p Policy) Router {
	return RouterFunc(func(s *domain.State) Route {
		if !s.NeedsRevision {
			return Route{Next: domain.StepCompression, Failures: s.PlanningFailures, Reason: "quality passed"}
		}
		if p.MaxRevisions > 0 && s.RevisionCount > p.MaxRevisions {
			return Route{Next: domain.StepRefinement, Failures: s.PlanningFailures, Reason: "revision limit reached"}
		}
		worker := s.LastWorker
		if !worker.IsWorker() {
			worker = s.LastActiveStep
		}
		if !worker.IsWorker() {
			return Route{Next: domain.StepCompression, Failures: s.PlanningFailures, Reason: "revision requested without a known worker"}
		}
		return Route{Next: worker, Failures: s.PlanningFailures, Reason: "revision requested"}
	})
}

// HumanReview routes after the final review decision.
func HumanReview() Router {
	return RouterFunc(func(s *domain.State) Route {
		if s.HumanChoice == domain.ChoiceRevise {
			return Route{Next: domain.StepPlanning, Failures: s.PlanningFailures, ClearDecision: true, Reason: "human asked for more analysis"}
		}
		return Route{Next: domain.StepEnd, Failures: s.PlanningFailures, ClearDecision: true, Reason: "human finished the review"}
	})
}

func isFinish(hint string) bool {
	return strings.EqualFold(strings.TrimSpace(hint), domain.TokenFinish)
}
