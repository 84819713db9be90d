package domain

import "strings"

// StepID identifies one stage of the research pipeline.
// The set is closed: ParseStepID is the only way to turn external text into a StepID.
type StepID string

const (
	StepHypothesis    StepID = "Hypothesis"
	StepHumanChoice   StepID = "HumanChoice"
	StepPlanning      StepID = "Planning"
	StepSearch        StepID = "Search"
	StepCoder         StepID = "Coder"
	StepVisualization StepID = "Visualization"
	StepReport        StepID = "Report"
	StepQualityReview StepID = "QualityReview"
	StepCompression   StepID = "Compression"
	StepRefinement    StepID = "Refinement"
	StepHumanReview   StepID = "HumanReview"
	StepEnd           StepID = "END"
)

// TokenFinish is the planning token that ends the worker loop.
const TokenFinish = "FINISH"

var allSteps = []StepID{
	StepHypothesis,
	StepHumanChoice,
	StepPlanning,
	StepSearch,
	StepCoder,
	StepVisualization,
	StepReport,
	StepQualityReview,
	StepCompression,
	StepRefinement,
	StepHumanReview,
	StepEnd,
}

var workerSteps = []StepID{StepSearch, StepCoder, StepVisualization, StepReport}

// Steps returns every step id in pipeline order, END included.
func Steps() []StepID {
	out := make([]StepID, len(allSteps))
	copy(out, allSteps)
	return out
}

// Workers returns the worker steps the planner may dispatch to.
func Workers() []StepID {
	out := make([]StepID, len(workerSteps))
	copy(out, workerSteps)
	return out
}

// ParseStepID resolves a token to a known step, ignoring case and surrounding space.
func ParseStepID(s string) (StepID, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, id := range allSteps {
		if strings.EqualFold(string(id), s) {
			return id, true
		}
	}
	return "", false
}

// Valid reports whether id is part of the fixed topology.
func (id StepID) Valid() bool {
	for _, known := range allSteps {
		if id == known {
			return true
		}
	}
	return false
}

// IsWorker reports whether id is one of the planner-dispatched workers.
func (id StepID) IsWorker() bool {
	for _, w := range workerSteps {
		if id == w {
			return true
		}
	}
	return false
}

// IsHuman reports whether id suspends execution awaiting a human decision.
func (id StepID) IsHuman() bool {
	return id == StepHumanChoice || id == StepHumanReview
}

// IsTerminal reports whether id is the sink.
func (id StepID) IsTerminal() bool {
	return id == StepEnd
}

func (id StepID) String() string {
	return string(id)
}
