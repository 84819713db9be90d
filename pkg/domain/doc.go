/*
Package domain contains the core domain models of the inquiry research pipeline.

It defines the fixed set of pipeline steps, the State record that captures a session's
progress, the typed partial Update executors return, and the merge rules the engine applies.
This package is kept pure and free of external I/O, following Hexagonal Architecture principles.

# Key Entities

  - StepID: The closed enumeration of pipeline steps (Hypothesis, Planning, workers, END...).
  - State: The serializable snapshot of a session (messages, artifacts, revision bookkeeping).
  - Update: A partial update produced by a step, merged through State.Apply.
  - Decision: The normalized routing signal, either Known(token) or Unknown.
  - Prompt / HumanDecision: What a human-decision step asks, and the answer that resumes it.
  - Notification: What the caller is told (decision_required, state_update, run_error).
*/
package domain
