// Package scripted replays canned step results from a YAML script.
//
// It stands in for real model-backed steps in demos, tests and offline runs:
//
//	steps:
//	  Hypothesis:
//	    - output: "Larger cities have more parks per capita"
//	  Planning:
//	    - output: {next: Coder, task: fit a regression}
//	    - output: FINISH
//	  Coder:
//	    - output: wrote analysis.py
//	      update:
//	        code_artifacts: {analysis.py: regression fit}
//
// Each session walks every step's list independently; once a list is exhausted its last
// entry repeats. Steps without a list echo their instruction.
package scripted

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Entry is one canned result.
type Entry struct {
	Output any            `yaml:"output"`
	Update map[string]any `yaml:"update"`
	// Error makes the step fail with this message.
	Error string `yaml:"error"`
	// Delay simulates latency, e.g. "250ms".
	Delay string `yaml:"delay"`
}

// File is the on-disk script format.
type File struct {
	Steps map[string][]Entry `yaml:"steps"`
}

// Script is a parsed, validated script.
type Script struct {
	steps map[domain.StepID][]Entry

	mu      sync.Mutex
	cursors map[string]int // "<session>/<step>" -> next entry
}

// Load reads a script from a YAML file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML script.
func Parse(data []byte) (*Script, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	s := &Script{steps: make(map[domain.StepID][]Entry), cursors: make(map[string]int)}
	for name, entries := range f.Steps {
		id, ok := domain.ParseStepID(name)
		if !ok || id.IsHuman() || id.IsTerminal() {
			return nil, fmt.Errorf("%w: %q cannot be scripted", domain.ErrUnknownStep, name)
		}
		for i, e := range entries {
			if e.Delay == "" {
				continue
			}
			if _, err := time.ParseDuration(e.Delay); err != nil {
				return nil, fmt.Errorf("invalid delay in %s entry %d: %w", id, i+1, err)
			}
		}
		s.steps[id] = entries
	}
	return s, nil
}

// Executors returns one executor per automated step, ready for the engine.
func (s *Script) Executors() map[domain.StepID]ports.StepExecutor {
	out := make(map[domain.StepID]ports.StepExecutor)
	for _, id := range domain.Steps() {
		if id.IsHuman() || id.IsTerminal() {
			continue
		}
		step := id
		out[step] = ports.ExecutorFunc(func(ctx context.Context, state *domain.State) (domain.StepResult, error) {
			return s.invoke(ctx, step, state)
		})
	}
	return out
}

func (s *Script) next(sessionID string, step domain.StepID) (Entry, bool) {
	entries := s.steps[step]
	if len(entries) == 0 {
		return Entry{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionID + "/" + step.String()
	i := s.cursors[key]
	if i >= len(entries) {
		i = len(entries) - 1
	} else {
		s.cursors[key] = i + 1
	}
	return entries[i], true
}

func (s *Script) invoke(ctx context.Context, step domain.StepID, state *domain.State) (domain.StepResult, error) {
	e, ok := s.next(state.SessionID, step)
	if !ok {
		return Echo(step, state), nil
	}

	if e.Delay != "" {
		d, _ := time.ParseDuration(e.Delay)
		select {
		case <-ctx.Done():
			return domain.StepResult{}, ctx.Err()
		case <-time.After(d):
		}
	}
	if e.Error != "" {
		return domain.StepResult{}, errors.New(e.Error)
	}
	return domain.StepResult{Output: e.Output, Update: e.Update}, nil
}

// Echo is the default behavior for unscripted steps. Planning echoes FINISH so an
// unscripted pipeline always reaches the final review.
func Echo(step domain.StepID, state *domain.State) domain.StepResult {
	switch step {
	case domain.StepPlanning:
		return domain.StepResult{Output: map[string]any{"next": domain.TokenFinish, "task": "summarize the findings"}}
	case domain.StepQualityReview:
		return domain.StepResult{Output: map[string]any{"next": "CONTINUE", "feedback": "no issues found"}}
	case domain.StepHypothesis:
		topic := ""
		for _, m := range state.Messages {
			if m.Role == domain.RoleUser {
				topic = m.Content
				break
			}
		}
		return domain.StepResult{Output: fmt.Sprintf("Hypothesis about %q", topic)}
	}
	if state.CurrentInstruction != "" {
		return domain.StepResult{Output: fmt.Sprintf("%s: %s", step, state.CurrentInstruction)}
	}
	return domain.StepResult{Output: step.String() + " completed"}
}
