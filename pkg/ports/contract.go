package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore implementation
// adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Put and Get", func(t *testing.T) {
		state := domain.NewState(sessionID, "topic: X")
		state.Hypothesis = "H"
		state.CodeArtifacts["analysis.py"] = "regression"
		state.StepCount = 4
		state.NextStep = domain.StepPlanning

		err := store.Put(ctx, sessionID, state)
		require.NoError(t, err, "Put should not return error")

		loaded, err := store.Get(ctx, sessionID)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, state.SessionID, loaded.SessionID)
		assert.Equal(t, "H", loaded.Hypothesis)
		assert.Equal(t, 4, loaded.StepCount)
		assert.Equal(t, "regression", loaded.CodeArtifacts["analysis.py"])
		require.Len(t, loaded.Messages, 1)
		assert.Equal(t, "topic: X", loaded.Messages[0].Content)
		assert.NotNil(t, loaded.VizArtifacts, "empty artifact maps survive a round trip")
	})

	t.Run("Get Isolation", func(t *testing.T) {
		loaded, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		loaded.Hypothesis = "mutated"
		loaded.CodeArtifacts["other.py"] = "x"

		again, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "H", again.Hypothesis, "callers must not mutate the stored record")
		assert.NotContains(t, again.CodeArtifacts, "other.py")
	})

	t.Run("NextStep", func(t *testing.T) {
		next, err := store.NextStep(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StepPlanning, next)

		suspended := domain.NewState(sessionID, "topic: X")
		suspended.NextStep = domain.StepHumanChoice
		suspended.PendingDecision = true
		suspended.Status = domain.StatusSuspended
		require.NoError(t, store.Put(ctx, sessionID, suspended))

		next, err = store.NextStep(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StepHumanChoice, next)

		done := domain.NewState(sessionID, "topic: X")
		done.NextStep = domain.StepEnd
		done.Status = domain.StatusCompleted
		require.NoError(t, store.Put(ctx, sessionID, done))

		next, err = store.NextStep(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StepID(""), next)

		_, err = store.NextStep(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Put(ctx, sessionID, domain.NewState(sessionID, "x"))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Get(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Get after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Put(ctx, id1, domain.NewState(id1, "a"))
		_ = store.Put(ctx, id2, domain.NewState(id2, "b"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
