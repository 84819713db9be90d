package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrRunInProgress is returned when a session already has a run in flight.
var ErrRunInProgress = errors.New("run already in progress for this session")

// ErrNotSuspended is returned when a decision is supplied for a session that is not waiting on one.
var ErrNotSuspended = errors.New("session is not awaiting a decision")

// ErrDecisionRequired is returned when new input arrives for a session that is waiting on a decision.
var ErrDecisionRequired = errors.New("session is awaiting a decision")

// ErrInvalidChoice is returned when a decision does not match any allowed choice.
var ErrInvalidChoice = errors.New("invalid choice")

// ErrUnknownStep is returned when a step id is not part of the pipeline topology.
var ErrUnknownStep = errors.New("unknown step")

// ErrMissingExecutor is returned when an automated step has no executor registered.
var ErrMissingExecutor = errors.New("missing step executor")

// ErrStepLimit is returned when a run exceeds the configured number of steps.
var ErrStepLimit = errors.New("step limit exceeded")
