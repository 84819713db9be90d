package process

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shell(t *testing.T, script string) ProcessConfig {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process fixtures use sh")
	}
	return ProcessConfig{Command: "sh", Args: []string{"-c", script}}
}

func TestExecutor_TextOutput(t *testing.T) {
	exec := NewExecutor(domain.StepCoder, shell(t, `echo "$INQUIRY_STEP did: $INQUIRY_INSTRUCTION"`))
	state := domain.NewState("s1", "topic")
	state.CurrentInstruction = "fit a model"

	res, err := exec.Invoke(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "Coder did: fit a model", res.Output)
	assert.Nil(t, res.Update)
}

func TestExecutor_ReadsStateFromStdin(t *testing.T) {
	exec := NewExecutor(domain.StepSearch, shell(t, `cat`))

	res, err := exec.Invoke(context.Background(), domain.NewState("s1", "urban parks"))
	require.NoError(t, err)
	out, ok := res.Output.(map[string]any)
	require.True(t, ok, "the echoed state is a bare JSON object")
	assert.Equal(t, "s1", out["session_id"])
}

func TestExecutor_Envelope(t *testing.T) {
	exec := NewExecutor(domain.StepCoder, shell(t,
		`echo '{"output": "wrote a.py", "update": {"code_artifacts": {"a.py": "script"}}}'`))

	res, err := exec.Invoke(context.Background(), domain.NewState("s1", "x"))
	require.NoError(t, err)
	assert.Equal(t, "wrote a.py", res.Output)
	u, err := domain.DecodeUpdate(res.Update)
	require.NoError(t, err)
	assert.Equal(t, domain.Artifacts{"a.py": "script"}, u.CodeArtifacts)
}

func TestExecutor_ConfigEnvironment(t *testing.T) {
	cfg := shell(t, `echo "$MODEL_NAME"`)
	cfg.Environment = map[string]string{"MODEL_NAME": "local-7b"}

	res, err := NewExecutor(domain.StepReport, cfg).Invoke(context.Background(), domain.NewState("s1", "x"))
	require.NoError(t, err)
	assert.Equal(t, "local-7b", res.Output)
}

func TestExecutor_Failure(t *testing.T) {
	exec := NewExecutor(domain.StepCoder, shell(t, `echo "Something went terribly wrong" >&2; exit 123`))

	_, err := exec.Invoke(context.Background(), domain.NewState("s1", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 123")
	assert.Contains(t, err.Error(), "Something went terribly wrong")
}

func TestExecutor_Cancellation(t *testing.T) {
	exec := NewExecutor(domain.StepCoder, shell(t, `sleep 10`), WithGracePeriod(500*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := exec.Invoke(ctx, domain.NewState("s1", "x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "executors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
executors:
  - step: coder
    command: python3
    args: [agents/coder.py]
    env: {MODEL: local}
`), 0o644))

	cfgs, err := LoadConfig(path)
	require.NoError(t, err)
	require.Contains(t, cfgs, domain.StepCoder)
	assert.Equal(t, []string{"agents/coder.py"}, cfgs[domain.StepCoder].Args)
	assert.Len(t, Executors(cfgs), 1)

	missing, err := LoadConfig(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	assert.Empty(t, missing)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"executors": [{"step": "HumanReview", "command": "x"}]}`), 0o644))
	_, err = LoadConfig(bad)
	assert.ErrorIs(t, err, domain.ErrUnknownStep)
}
