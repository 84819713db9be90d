package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/executor/scripted"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *inquiry.Pipeline) {
	t.Helper()
	script, err := scripted.Parse(nil)
	require.NoError(t, err)
	pipe, err := inquiry.New(script.Executors())
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(pipe))
	t.Cleanup(func() {
		srv.Close()
		_ = pipe.Close()
	})
	return srv, pipe
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// sseReader yields the event names and payloads of an SSE stream.
type sseReader struct {
	scanner *bufio.Scanner
}

func (r *sseReader) next(t *testing.T) (string, string) {
	t.Helper()
	var event, data string
	for r.scanner.Scan() {
		line := r.scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
	t.Fatalf("stream ended: %v", r.scanner.Err())
	return "", ""
}

func (r *sseReader) until(t *testing.T, want string) string {
	t.Helper()
	for {
		event, data := r.next(t)
		if event == want {
			return data
		}
	}
}

func subscribe(t *testing.T, srv *httptest.Server, path string) *sseReader {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := &sseReader{scanner: bufio.NewScanner(resp.Body)}
	event, data := r.next(t)
	require.Equal(t, "ping", event)
	require.Equal(t, "connected", data)
	return r
}

func TestServer_SessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	events := subscribe(t, srv, "/sessions/s1/events")

	resp := postJSON(t, srv.URL+"/sessions", SubmitRequest{SessionID: "s1", Input: "Does coffee improve focus?"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	update := events.until(t, string(domain.NotifyStateUpdate))
	var diff domain.StateDiff
	require.NoError(t, json.Unmarshal([]byte(update), &diff))
	assert.Equal(t, "s1", diff.SessionID)

	var n domain.Notification
	require.NoError(t, json.Unmarshal([]byte(events.until(t, string(domain.NotifyDecisionRequired))), &n))
	assert.Equal(t, domain.StepHumanChoice, n.Step)

	// Input is refused while a decision is pending.
	resp = postJSON(t, srv.URL+"/sessions/s1/input", SubmitRequest{Input: "more"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/sessions/s1/decision", domain.HumanDecision{Choice: "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/sessions/s1/decision", domain.HumanDecision{Choice: "continue"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	events.until(t, string(domain.NotifyDecisionRequired))

	resp = postJSON(t, srv.URL+"/sessions/s1/decision", domain.HumanDecision{Choice: "finish"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	events.until(t, string(domain.NotifyRunCompleted))

	get, err := http.Get(srv.URL + "/sessions/s1")
	require.NoError(t, err)
	defer get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)
	var state domain.State
	require.NoError(t, json.NewDecoder(get.Body).Decode(&state))
	assert.Equal(t, domain.StatusCompleted, state.Status)

	list, err := http.Get(srv.URL + "/sessions")
	require.NoError(t, err)
	defer list.Body.Close()
	var ids map[string][]string
	require.NoError(t, json.NewDecoder(list.Body).Decode(&ids))
	assert.Equal(t, []string{"s1"}, ids["sessions"])

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/s1", nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	missing, err := http.Get(srv.URL + "/sessions/s1")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestServer_CreateSessionGeneratesID(t *testing.T) {
	srv, pipe := newTestServer(t)

	resp := postJSON(t, srv.URL+"/sessions", SubmitRequest{Input: "topic"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var accepted AcceptedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	assert.NotEmpty(t, accepted.SessionID)

	assert.Eventually(t, func() bool {
		state, err := pipe.Inspect(context.Background(), accepted.SessionID)
		return err == nil && state.Suspended()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_EventsReplayPendingDecision(t *testing.T) {
	srv, pipe := newTestServer(t)

	resp := postJSON(t, srv.URL+"/sessions", SubmitRequest{Input: "topic"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var accepted AcceptedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))

	assert.Eventually(t, func() bool {
		state, err := pipe.Inspect(context.Background(), accepted.SessionID)
		return err == nil && state.Suspended() && !pipe.Running(accepted.SessionID)
	}, 2*time.Second, 10*time.Millisecond)

	// The run suspended before anyone listened.
	events := subscribe(t, srv, "/sessions/"+accepted.SessionID+"/events")
	event, data := events.next(t)
	require.Equal(t, string(domain.NotifyDecisionRequired), event)
	var n domain.Notification
	require.NoError(t, json.Unmarshal([]byte(data), &n))
	assert.Equal(t, accepted.SessionID, n.SessionID)
	assert.Equal(t, domain.StepHumanChoice, n.Step)
	assert.Contains(t, n.Prompt, "Please choose the next step:")
	assert.Len(t, n.Choices, 2)

	resp = postJSON(t, srv.URL+"/sessions/"+accepted.SessionID+"/decision", domain.HumanDecision{Choice: "continue"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(events.until(t, string(domain.NotifyDecisionRequired))), &n))
	assert.Equal(t, domain.StepHumanReview, n.Step)
}

func TestServer_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/sessions", SubmitRequest{Input: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	raw, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	resp = postJSON(t, srv.URL+"/sessions/ghost/decision", domain.HumanDecision{Choice: "continue"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Graph(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/graph")
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(buf.String(), "graph TD"))
	assert.NotContains(t, buf.String(), "classDef")

	missing, err := http.Get(srv.URL + "/graph?session_id=ghost")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestServer_HealthAndCORS(t *testing.T) {
	handler := NewHandler(nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/sessions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWatched(t *testing.T) {
	status := domain.StatusSuspended
	diff := &domain.StateDiff{Status: &status}

	assert.True(t, watched(diff, nil))
	assert.True(t, watched(diff, []string{"messages", " status"}))
	assert.False(t, watched(diff, []string{"messages", "artifacts"}))
	assert.True(t, watched(&domain.StateDiff{Artifacts: map[string]domain.Artifacts{"code_artifacts": {"a.py": "x"}}}, []string{"artifacts"}))
}
