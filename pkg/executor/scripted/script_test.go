package scripted

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/inquiry/pkg/decision"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demo = `
steps:
  Planning:
    - output: {next: Coder, task: fit a regression}
    - output: FINISH
  Coder:
    - output: wrote analysis.py
      update:
        code_artifacts: {analysis.py: regression fit}
  Search:
    - error: rate limited
`

func TestParse_Replay(t *testing.T) {
	s, err := Parse([]byte(demo))
	require.NoError(t, err)
	execs := s.Executors()
	ctx := context.Background()
	state := domain.NewState("s1", "topic")

	first, err := execs[domain.StepPlanning].Invoke(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "Coder", decision.Extract(first.Output))
	assert.Equal(t, "fit a regression", decision.Field(first.Output, "task"))

	second, err := execs[domain.StepPlanning].Invoke(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "FINISH", decision.Extract(second.Output))

	third, err := execs[domain.StepPlanning].Invoke(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "FINISH", decision.Extract(third.Output), "the last entry repeats")

	other, err := execs[domain.StepPlanning].Invoke(ctx, domain.NewState("s2", "topic"))
	require.NoError(t, err)
	assert.Equal(t, "Coder", decision.Extract(other.Output), "sessions have independent cursors")

	coder, err := execs[domain.StepCoder].Invoke(ctx, state)
	require.NoError(t, err)
	u, err := domain.DecodeUpdate(coder.Update)
	require.NoError(t, err)
	assert.Equal(t, domain.Artifacts{"analysis.py": "regression fit"}, u.CodeArtifacts)

	_, err = execs[domain.StepSearch].Invoke(ctx, state)
	assert.EqualError(t, err, "rate limited")
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("steps:\n  HumanChoice:\n    - output: continue\n"))
	assert.ErrorIs(t, err, domain.ErrUnknownStep)

	_, err = Parse([]byte("steps:\n  Painter:\n    - output: x\n"))
	assert.ErrorIs(t, err, domain.ErrUnknownStep)

	_, err = Parse([]byte("steps:\n  Coder:\n    - delay: soon\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("steps: ["))
	assert.Error(t, err)
}

func TestEcho(t *testing.T) {
	s, err := Parse([]byte("steps: {}"))
	require.NoError(t, err)
	execs := s.Executors()
	ctx := context.Background()
	state := domain.NewState("s1", "urban parks")

	hyp, err := execs[domain.StepHypothesis].Invoke(ctx, state)
	require.NoError(t, err)
	assert.Contains(t, hyp.Output, "urban parks")

	plan, err := execs[domain.StepPlanning].Invoke(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenFinish, decision.Extract(plan.Output))

	state.CurrentInstruction = "draft the intro"
	report, err := execs[domain.StepReport].Invoke(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "Report: draft the intro", report.Output)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(demo), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Executors(), 9)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDelayHonorsContext(t *testing.T) {
	s, err := Parse([]byte("steps:\n  Coder:\n    - delay: 1h\n"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Executors()[domain.StepCoder].Invoke(ctx, domain.NewState("s1", "x"))
	assert.ErrorIs(t, err, context.Canceled)
}
