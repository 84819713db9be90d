/*
Package inquiry runs a multi-step research pipeline as a resumable state machine.

A session moves through a fixed graph of steps: a Hypothesis is proposed and confirmed by a
human, Planning dispatches the worker steps (Search, Code, Visualization, Report and the
Coder fallback), a QualityReview sends unsatisfactory work back for revision, Compression
keeps the message trace bounded and Refinement produces the final report for a last human
review.

# Concept

Every step is a ports.StepExecutor supplied by the host application, typically backed by a
language model. The engine owns routing, checkpointing and loop avoidance: it persists one
snapshot per completed step, suspends the session whenever a human decision is required
and resumes it from the persisted checkpoint, possibly in another process.

# Usage

	script, err := scripted.Parse(nil)
	if err != nil {
		log.Fatal(err)
	}

	pipe, err := inquiry.New(script.Executors())
	if err != nil {
		log.Fatal(err)
	}
	defer pipe.Close()

	events, cancel := pipe.Subscribe("session-1")
	defer cancel()

	if err := pipe.Submit(ctx, "session-1", "Does coffee improve focus?"); err != nil {
		log.Fatal(err)
	}
	for n := range events {
		switch n.Type {
		case domain.NotifyDecisionRequired:
			fmt.Println(n.Prompt)
			_ = pipe.Decide(ctx, "session-1", domain.HumanDecision{Choice: "continue"})
		case domain.NotifyRunCompleted, domain.NotifyRunError:
			return
		}
	}
*/
package inquiry
