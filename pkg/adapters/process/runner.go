package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
)

// DefaultGracePeriod is how long a cancelled process may take to exit after the interrupt.
const DefaultGracePeriod = 5 * time.Second

// Executor runs a pipeline step as a local process.
//
// The process receives the session snapshot as JSON on stdin plus INQUIRY_* environment
// variables. A JSON object on stdout with "output" and/or "update" keys is taken as a
// StepResult; any other stdout becomes the step's textual output.
type Executor struct {
	step    domain.StepID
	config  ProcessConfig
	baseDir string
	grace   time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) ExecutorOption {
	return func(e *Executor) {
		e.baseDir = dir
	}
}

// WithGracePeriod sets how long a cancelled process gets before being killed.
func WithGracePeriod(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.grace = d
		}
	}
}

// NewExecutor creates a process-backed executor for one step.
func NewExecutor(step domain.StepID, cfg ProcessConfig, opts ...ExecutorOption) *Executor {
	e := &Executor{step: step, config: cfg, grace: DefaultGracePeriod}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Executors builds one executor per configured step.
func Executors(configs map[domain.StepID]ProcessConfig, opts ...ExecutorOption) map[domain.StepID]ports.StepExecutor {
	out := make(map[domain.StepID]ports.StepExecutor, len(configs))
	for id, cfg := range configs {
		out[id] = NewExecutor(id, cfg, opts...)
	}
	return out
}

// Invoke implements ports.StepExecutor.
func (e *Executor) Invoke(ctx context.Context, state *domain.State) (domain.StepResult, error) {
	input, err := json.Marshal(state)
	if err != nil {
		return domain.StepResult{}, fmt.Errorf("failed to encode state for %s: %w", e.step, err)
	}

	cmd := exec.CommandContext(ctx, e.config.Command, e.config.Args...)
	cmd.Dir = e.baseDir
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = e.grace
	if runtime.GOOS != "windows" {
		// Ask politely first; WaitDelay escalates to a kill.
		cmd.Cancel = func() error {
			return cmd.Process.Signal(os.Interrupt)
		}
	}

	// Values are passed via the environment, never as flags, to avoid flag injection.
	env := []string{
		"INQUIRY_STEP=" + e.step.String(),
		"INQUIRY_SESSION=" + state.SessionID,
		"INQUIRY_INSTRUCTION=" + state.CurrentInstruction,
	}
	for k, v := range e.config.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.StepResult{}, fmt.Errorf("%s process interrupted: %w", e.step, ctxErr)
		}
		return domain.StepResult{}, fmt.Errorf("execution failed: %v. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseOutput(stdout.String()), nil
}

// parseOutput auto-detects a JSON StepResult envelope, falling back to text.
func parseOutput(raw string) domain.StepResult {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var envelope map[string]any
		if err := json.Unmarshal([]byte(trimmed), &envelope); err == nil {
			_, hasOutput := envelope["output"]
			update, isUpdate := envelope["update"].(map[string]any)
			if hasOutput || isUpdate {
				return domain.StepResult{Output: envelope["output"], Update: update}
			}
			// A bare object is structured output, e.g. {"next": "Coder"}.
			return domain.StepResult{Output: envelope}
		}
	}
	return domain.StepResult{Output: trimmed}
}
