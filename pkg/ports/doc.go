/*
Package ports defines the driven ports (interfaces) for the inquiry engine.

These interfaces decouple the orchestration core from external implementations, allowing
the engine to work with various step executors, storage backends and lock providers.

# Key Interfaces

  - StepExecutor: Performs the work of one pipeline step (LLM, script, human fixture).
  - CheckpointStore: Persists and loads session State, and reports where a session resumes.
  - DistributedLocker: Hands out renewable leases that keep one replica running a session.
*/
package ports
