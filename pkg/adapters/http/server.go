// Package http exposes a Pipeline over a JSON and Server-Sent Events API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/internal/presentation/graph"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 64 << 10

// Pipeline defines what the HTTP server needs from the research pipeline.
type Pipeline interface {
	Start(ctx context.Context, input string) (string, error)
	Submit(ctx context.Context, sessionID, input string) error
	Decide(ctx context.Context, sessionID string, d domain.HumanDecision) error
	Subscribe(sessionID string) (<-chan domain.Notification, func())
	Inspect(ctx context.Context, sessionID string) (*domain.State, error)
	Running(sessionID string) bool
	Sessions(ctx context.Context) ([]string, error)
	Reset(ctx context.Context, sessionID string) error
	Graph() []inquiry.Edge
}

// Server serves the pipeline API.
type Server struct {
	Pipeline Pipeline
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// SubmitRequest starts a session or appends input to one.
type SubmitRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Input     string `json:"input"`
}

// AcceptedResponse acknowledges a run handed to the background.
type AcceptedResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates a new HTTP handler for the pipeline.
func NewHandler(p Pipeline, opts ...Option) http.Handler {
	s := &Server{Pipeline: p, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/input", s.SubmitInput)
			r.Post("/decision", s.SubmitDecision)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequest
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Input) == "" {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "input is required"})
		return
	}

	id := body.SessionID
	var err error
	if id == "" {
		id, err = s.Pipeline.Start(r.Context(), body.Input)
	} else {
		err = s.Pipeline.Submit(r.Context(), id, body.Input)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, AcceptedResponse{SessionID: id, Status: "running"})
}

// SubmitInput handles POST /sessions/{id}/input.
func (s *Server) SubmitInput(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body SubmitRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.Pipeline.Submit(r.Context(), id, body.Input); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, AcceptedResponse{SessionID: id, Status: "running"})
}

// SubmitDecision handles POST /sessions/{id}/decision.
func (s *Server) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body domain.HumanDecision
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.Pipeline.Decide(r.Context(), id, body); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, AcceptedResponse{SessionID: id, Status: "running"})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Pipeline.Sessions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.Pipeline.Inspect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Pipeline.Reset(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGraph handles GET /graph. With ?session_id= the session's progress is highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.GraphOverlay
	if id := r.URL.Query().Get("session_id"); id != "" {
		state, err := s.Pipeline.Inspect(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		overlay = graph.OverlayFor(state)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(s.Pipeline.Graph(), overlay))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "inquiry-http",
		"version": strings.TrimSpace(inquiry.Version),
	})
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
//
// state_update events carry a domain.StateDiff against the previous update sent on this
// stream. The optional watch parameter (messages, artifacts, status, fields) drops updates
// that touch none of the listed parts. Other notifications are always sent in full.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("streaming not supported")
		return
	}

	sessionID := chi.URLParam(r, "id")
	ch, cancel := s.Pipeline.Subscribe(sessionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	s.replayDecision(r.Context(), w, sessionID)
	flusher.Flush()
	s.logger.Info("sse client connected", "session", sessionID)

	var watchList []string
	if watch := r.URL.Query().Get("watch"); watch != "" {
		watchList = strings.Split(watch, ",")
	}

	var last *domain.State
	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("sse client disconnected", "session", sessionID)
			return
		case n, ok := <-ch:
			if !ok {
				return
			}

			var payload any = n
			if n.Type == domain.NotifyStateUpdate {
				diff := domain.Diff(last, n.Snapshot)
				last = n.Snapshot
				if diff == nil || !watched(diff, watchList) {
					continue
				}
				payload = diff
			}

			data, err := json.Marshal(payload)
			if err != nil {
				s.logger.Error("failed to encode event", "session", sessionID, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, data)
			flusher.Flush()
		}
	}
}

// replayDecision sends decision_required for a session that suspended before the client
// subscribed. A run still in flight announces its own suspension on the live stream.
func (s *Server) replayDecision(ctx context.Context, w http.ResponseWriter, sessionID string) {
	if s.Pipeline.Running(sessionID) {
		return
	}
	state, err := s.Pipeline.Inspect(ctx, sessionID)
	if err != nil || !state.Suspended() {
		return
	}
	prompt, _ := domain.PromptFor(state.NextStep)
	data, err := json.Marshal(domain.Notification{
		Type:      domain.NotifyDecisionRequired,
		SessionID: sessionID,
		Timestamp: state.UpdatedAt,
		Step:      state.NextStep,
		Prompt:    prompt.Render(),
		Choices:   prompt.Choices,
	})
	if err != nil {
		s.logger.Error("failed to encode event", "session", sessionID, "err", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", domain.NotifyDecisionRequired, data)
}

// watched reports whether diff touches any of the watched parts. An empty list matches all.
func watched(diff *domain.StateDiff, watchList []string) bool {
	if len(watchList) == 0 {
		return true
	}
	for _, field := range watchList {
		switch strings.TrimSpace(field) {
		case "messages":
			if len(diff.Messages) > 0 || diff.MessagesReplaced {
				return true
			}
		case "artifacts":
			if len(diff.Artifacts) > 0 {
				return true
			}
		case "status":
			if diff.Status != nil || diff.NextStep != nil {
				return true
			}
		case "fields":
			if len(diff.Fields) > 0 {
				return true
			}
		}
	}
	return false
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRunInProgress),
		errors.Is(err, domain.ErrDecisionRequired),
		errors.Is(err, domain.ErrNotSuspended):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidChoice):
		return http.StatusUnprocessableEntity
	case errors.Is(err, inquiry.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, inquiry.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, inquiry.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
