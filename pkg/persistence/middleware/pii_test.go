package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/inquiry/pkg/adapters/memory"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{`[\w.]+@[\w.]+`, `\d{3}-\d{2}-\d{4}`})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	state := domain.NewState("s1", "contact jdoe@example.com about the survey")
	state.CodeArtifacts["clean.py"] = "drops rows with ssn 999-99-9999"
	state.Hypothesis = "public claim"
	require.NoError(t, secure.Put(ctx, "s1", state))

	assert.Contains(t, state.Messages[0].Content, "jdoe@example.com", "the in-memory state is not modified")

	stored, err := underlying.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "contact *** about the survey", stored.Messages[0].Content)
	assert.Equal(t, "drops rows with ssn ***", stored.CodeArtifacts["clean.py"])
	assert.Equal(t, "public claim", stored.Hypothesis)
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_MasksBeforeEncrypting(t *testing.T) {
	underlying := memory.NewStore()
	key := generateKey(t)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	require.NoError(t, err)
	pii, err := middleware.NewPIIMiddleware([]string{`secret`})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "s1", domain.NewState("s1", "a secret plan")))

	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a *** plan", loaded.Messages[0].Content)
}
