package domain

import (
	"context"
	"time"
)

// NotificationType classifies what the caller is being told.
type NotificationType string

const (
	NotifyDecisionRequired NotificationType = "decision_required"
	NotifyStateUpdate      NotificationType = "state_update"
	NotifyRunError         NotificationType = "run_error"
	NotifyRunCompleted     NotificationType = "run_completed"
)

// Notification is the transport-agnostic message surfaced to callers.
type Notification struct {
	Type      NotificationType `json:"type"`
	SessionID string           `json:"session_id"`
	Timestamp time.Time        `json:"timestamp"`

	// Prompt and Choices are set for decision_required.
	Prompt  string   `json:"prompt,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
	Step    StepID   `json:"step,omitempty"`

	// Snapshot is set for state_update and run_completed.
	Snapshot *State `json:"snapshot,omitempty"`

	// Message is set for run_error.
	Message string `json:"message,omitempty"`
}

// StepEvent describes the execution of a single step.
type StepEvent struct {
	SessionID string        `json:"session_id"`
	Step      StepID        `json:"step"`
	StepCount int           `json:"step_count"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// RouteEvent describes a routing decision taken after a step.
type RouteEvent struct {
	SessionID string `json:"session_id"`
	From      StepID `json:"from"`
	To        StepID `json:"to"`
	Emergency bool   `json:"emergency,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability. Every field is optional.
type LifecycleHooks struct {
	OnStepEnter func(context.Context, *StepEvent)
	OnStepLeave func(context.Context, *StepEvent)
	OnRoute     func(context.Context, *RouteEvent)
	OnSuspend   func(context.Context, *StepEvent)
	OnResume    func(context.Context, *StepEvent)
}
