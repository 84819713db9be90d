package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/inquiry/internal/presentation/tui"
	"github.com/aretw0/inquiry/pkg/domain"
)

// Session is the part of the pipeline an interactive run needs.
type Session interface {
	Submit(ctx context.Context, sessionID, input string) error
	Decide(ctx context.Context, sessionID string, d domain.HumanDecision) error
	Subscribe(sessionID string) (<-chan domain.Notification, func())
	Inspect(ctx context.Context, sessionID string) (*domain.State, error)
}

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	SessionID string
	// Input starts the session or continues a finished one. It is ignored when the session
	// is waiting on a decision.
	Input    string
	In       io.Reader
	Out      io.Writer
	Renderer *tui.Renderer
	Quiet    bool
}

// RunSession drives one session from the terminal: it prints the trace as it grows and reads
// each human decision from In as "<choice> [guidance]".
func RunSession(ctx context.Context, s Session, opts RunOptions) (*domain.State, error) {
	if opts.Renderer == nil {
		opts.Renderer = tui.NewRenderer(true)
	}
	events, cancel := s.Subscribe(opts.SessionID)
	defer cancel()
	reader := bufio.NewReader(opts.In)

	printed := 0
	existing, err := s.Inspect(ctx, opts.SessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
	case err != nil:
		return nil, err
	default:
		printed = len(existing.Messages)
	}

	if existing != nil && existing.Suspended() {
		// Resume the pending decision instead of submitting input.
		prompt, _ := domain.PromptFor(existing.NextStep)
		if err := decide(ctx, s, reader, opts, domain.Notification{Step: existing.NextStep, Prompt: prompt.Render()}); err != nil {
			return existing, err
		}
	} else {
		if strings.TrimSpace(opts.Input) == "" {
			return existing, errors.New("input is required to start a session")
		}
		if err := s.Submit(ctx, opts.SessionID, opts.Input); err != nil {
			return existing, err
		}
		if !opts.Quiet {
			printSystemMessage(opts.Out, "Session '%s' running.", opts.SessionID)
		}
	}

	var last *domain.State
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case n, ok := <-events:
			if !ok {
				return last, io.EOF
			}
			if n.Snapshot != nil {
				last = n.Snapshot
				printed = printTrace(opts, n.Snapshot, printed)
			}

			switch n.Type {
			case domain.NotifyDecisionRequired:
				if err := decide(ctx, s, reader, opts, n); err != nil {
					return last, err
				}
			case domain.NotifyRunCompleted:
				if !opts.Quiet {
					if artifacts := opts.Renderer.Artifacts(n.Snapshot); artifacts != "" {
						fmt.Fprint(opts.Out, artifacts)
					}
					printSystemMessage(opts.Out, "Research finished after %d steps.", n.Snapshot.StepCount)
				}
				return last, nil
			case domain.NotifyRunError:
				return last, errors.New(n.Message)
			}
		}
	}
}

// printTrace writes the messages after the first printed ones. A compressed trace is
// shorter than what was printed; only its summary is shown.
func printTrace(opts RunOptions, state *domain.State, printed int) int {
	if opts.Quiet {
		return len(state.Messages)
	}
	if printed > len(state.Messages) {
		printed = len(state.Messages) - 1
		if printed < 0 {
			printed = 0
		}
	}
	for _, m := range state.Messages[printed:] {
		fmt.Fprint(opts.Out, opts.Renderer.Message(m))
	}
	return len(state.Messages)
}

// decide prompts until an accepted decision is submitted.
func decide(ctx context.Context, s Session, reader *bufio.Reader, opts RunOptions, n domain.Notification) error {
	for {
		fmt.Fprintf(opts.Out, "\n%s\n> ", n.Prompt)
		line, err := reader.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return err
		}

		d := ParseDecision(line)
		err = s.Decide(ctx, opts.SessionID, d)
		if errors.Is(err, domain.ErrInvalidChoice) {
			printSystemMessage(opts.Out, "%v", err)
			continue
		}
		return err
	}
}

// ParseDecision splits "<choice> [guidance]" into a decision.
func ParseDecision(line string) domain.HumanDecision {
	choice, text, _ := strings.Cut(strings.TrimSpace(line), " ")
	return domain.HumanDecision{Choice: choice, Text: strings.TrimSpace(text)}
}
