package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), Config{
		Path:      filepath.Join(t.TempDir(), "inquiry.db"),
		EnableWAL: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunCheckpointStoreContract(t, openTestStore(t))
}

func TestSQLiteStore_ColumnsTrackState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	state := domain.NewState("s1", "topic")
	state.StepCount = 7
	state.NextStep = domain.StepHumanReview
	state.PendingDecision = true
	state.Status = domain.StatusSuspended
	require.NoError(t, s.Put(ctx, "s1", state))

	var row Checkpoint
	require.NoError(t, s.db.Where("session_id = ?", "s1").Take(&row).Error)
	assert.Equal(t, "HumanReview", row.NextStep)
	assert.Equal(t, "suspended", row.Status)
	assert.Equal(t, 7, row.StepCount)

	state.StepCount = 8
	state.NextStep = domain.StepEnd
	state.Status = domain.StatusCompleted
	require.NoError(t, s.Put(ctx, "s1", state))

	var count int64
	require.NoError(t, s.db.Model(&Checkpoint{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "put upserts a single row per session")

	next, err := s.NextStep(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestDSNFromConfig(t *testing.T) {
	_, err := dsnFromConfig(Config{})
	assert.Error(t, err)

	dsn, err := dsnFromConfig(Config{InMemory: true})
	require.NoError(t, err)
	assert.Contains(t, dsn, "mode=memory")

	dsn, err = dsnFromConfig(Config{Path: "/tmp/x.db"})
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/x.db?_pragma=busy_timeout(5000)", dsn)
}
