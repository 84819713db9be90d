package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/executor/scripted"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	script, err := scripted.Parse(nil)
	require.NoError(t, err)
	pipe, err := inquiry.New(script.Executors())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pipe.Close() })
	return NewServer(pipe, WithWait(2*time.Second))
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestServer_ResearchRoundTrip(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	started, err := s.handleStart(ctx, mcp.CallToolRequest{}, map[string]interface{}{"topic": "Does coffee improve focus?", "session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "decision_required", started.Status)
	assert.Contains(t, started.Prompt, "Regenerate hypothesis")
	require.NotNil(t, started.State)
	assert.Equal(t, domain.StepHumanChoice, started.State.NextStep)

	reviewed, err := s.handleDecision(ctx, mcp.CallToolRequest{}, map[string]interface{}{"session_id": "s1", "choice": "continue"})
	require.NoError(t, err)
	assert.Equal(t, "decision_required", reviewed.Status)
	assert.Equal(t, domain.StepHumanReview, reviewed.State.NextStep)

	done, err := s.handleDecision(ctx, mcp.CallToolRequest{}, map[string]interface{}{"session_id": "s1", "choice": "finish"})
	require.NoError(t, err)
	assert.Equal(t, "completed", done.Status)

	res, err := s.handleGetSession(ctx, toolRequest(map[string]any{"session_id": "s1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var state domain.State
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &state))
	assert.True(t, state.Completed())

	res, err = s.handleListSessions(ctx, toolRequest(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `["s1"]`, textOf(t, res))
}

func TestServer_GeneratesSessionID(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.handleStart(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{"topic": "topic"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "decision_required", resp.Status)
}

func TestServer_Errors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleStart(ctx, mcp.CallToolRequest{}, map[string]interface{}{"topic": " "})
	assert.Error(t, err)

	_, err = s.handleDecision(ctx, mcp.CallToolRequest{}, map[string]interface{}{"session_id": "ghost", "choice": "continue"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	res, err := s.handleGetSession(ctx, toolRequest(map[string]any{"session_id": "ghost"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleGetSession(ctx, toolRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
