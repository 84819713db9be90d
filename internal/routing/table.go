package routing

import (
	"fmt"

	"github.com/aretw0/inquiry/pkg/domain"
)

// Edge is one possible transition, used to draw the topology.
type Edge struct {
	From  StepID
	To    StepID
	Label string
}

// Set is the fixed routing table of the pipeline, keyed by the step that just ran.
// Human steps route only after their decision has been merged.
type Set struct {
	entry  Router
	routes map[StepID]Router
}

// NewSet builds the routing table for the given policy.
func NewSet(p Policy) *Set {
	routes := map[StepID]Router{
		domain.StepHypothesis:    Static(domain.StepHumanChoice),
		domain.StepHumanChoice:   Entry(),
		domain.StepPlanning:      Planning(p),
		domain.StepQualityReview: Quality(p),
		domain.StepCompression:   Static(domain.StepPlanning),
		domain.StepRefinement:    Static(domain.StepHumanReview),
		domain.StepHumanReview:   HumanReview(),
	}
	for _, w := range domain.Workers() {
		routes[w] = Static(domain.StepQualityReview)
	}
	return &Set{entry: Entry(), routes: routes}
}

// Start routes a run that has not executed any step yet.
func (s *Set) Start(state *domain.State) Route {
	return s.entry.Route(state)
}

// After routes the run once step has completed.
func (s *Set) After(step StepID, state *domain.State) (Route, error) {
	r, ok := s.routes[step]
	if !ok {
		return Route{}, fmt.Errorf("%w: no router after %q", domain.ErrUnknownStep, step)
	}
	return r.Route(state), nil
}

// Edges lists every transition the table can take, in a stable order.
func Edges() []Edge {
	edges := []Edge{
		{From: domain.StepHypothesis, To: domain.StepHumanChoice},
		{From: domain.StepHumanChoice, To: domain.StepHypothesis, Label: domain.ChoiceRegenerate},
		{From: domain.StepHumanChoice, To: domain.StepPlanning, Label: domain.ChoiceContinue},
	}
	for _, w := range domain.Workers() {
		edges = append(edges, Edge{From: domain.StepPlanning, To: w, Label: w.String()})
	}
	edges = append(edges,
		Edge{From: domain.StepPlanning, To: domain.StepPlanning, Label: "retry"},
		Edge{From: domain.StepPlanning, To: domain.StepRefinement, Label: domain.TokenFinish},
	)
	for _, w := range domain.Workers() {
		edges = append(edges, Edge{From: w, To: domain.StepQualityReview})
	}
	for _, w := range domain.Workers() {
		edges = append(edges, Edge{From: domain.StepQualityReview, To: w, Label: "revision"})
	}
	edges = append(edges,
		Edge{From: domain.StepQualityReview, To: domain.StepCompression, Label: "pass"},
		Edge{From: domain.StepQualityReview, To: domain.StepRefinement, Label: "revision limit"},
		Edge{From: domain.StepCompression, To: domain.StepPlanning},
		Edge{From: domain.StepRefinement, To: domain.StepHumanReview},
		Edge{From: domain.StepHumanReview, To: domain.StepPlanning, Label: domain.ChoiceRevise},
		Edge{From: domain.StepHumanReview, To: domain.StepEnd, Label: domain.ChoiceFinish},
	)
	return edges
}
