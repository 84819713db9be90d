// Package mcp exposes a Pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/internal/presentation/graph"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// GraphURI is the resource holding the pipeline topology.
const GraphURI = "inquiry://graph"

// DefaultWait bounds how long a tool call waits for a run to reach a stopping point.
const DefaultWait = 2 * time.Minute

// Pipeline defines what the MCP server needs from the research pipeline.
type Pipeline interface {
	Start(ctx context.Context, input string) (string, error)
	Submit(ctx context.Context, sessionID, input string) error
	Decide(ctx context.Context, sessionID string, d domain.HumanDecision) error
	Subscribe(sessionID string) (<-chan domain.Notification, func())
	Inspect(ctx context.Context, sessionID string) (*domain.State, error)
	Sessions(ctx context.Context) ([]string, error)
	Graph() []inquiry.Edge
}

// RunResponse reports where a run stopped. It is shared by the run-driving tools.
type RunResponse struct {
	SessionID string          `json:"session_id" jsonschema_description:"The research session"`
	Status    string          `json:"status" jsonschema_description:"decision_required, completed, running or error"`
	Prompt    string          `json:"prompt,omitempty" jsonschema_description:"The question to answer with submit_decision"`
	Choices   []domain.Choice `json:"choices,omitempty" jsonschema_description:"Accepted choices"`
	Error     string          `json:"error,omitempty"`
	State     *domain.State   `json:"state,omitempty" jsonschema_description:"The latest snapshot"`
}

// Server wraps the Pipeline and exposes it as an MCP Server.
type Server struct {
	pipeline  Pipeline
	mcpServer *server.MCPServer
	wait      time.Duration
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithWait sets how long run-driving tools wait before answering "running".
func WithWait(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.wait = d
		}
	}
}

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(p Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:  p,
		mcpServer: server.NewMCPServer("inquiry-mcp", strings.TrimSpace(inquiry.Version)),
		wait:      DefaultWait,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) registerTools() {
	startTool := mcp.NewTool("start_research",
		mcp.WithDescription("Start a research session on a topic, or add input to a finished one. Returns once the session needs a decision or completes."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("The research question or new input")),
		mcp.WithString("session_id", mcp.Description("Existing session to continue (optional)")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStart))

	decisionTool := mcp.NewTool("submit_decision",
		mcp.WithDescription("Answer the decision a suspended session is waiting on."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The suspended session")),
		mcp.WithString("choice", mcp.Required(), mcp.Description("One of the offered choices, e.g. continue, regenerate, revise, finish")),
		mcp.WithString("text", mcp.Description("Guidance for the next round (optional)")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(decisionTool, mcp.NewStructuredToolHandler(s.handleDecision))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get the latest snapshot of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session to inspect")),
	), s.handleGetSession)

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the ids of all persisted sessions."),
	), s.handleListSessions)
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunResponse, error) {
	topic, _ := args["topic"].(string)
	if strings.TrimSpace(topic) == "" {
		return RunResponse{}, errors.New("topic is required")
	}
	id, _ := args["session_id"].(string)
	if id == "" {
		id = inquiry.NewSessionID()
	}
	return s.runAndWait(ctx, id, func() error {
		return s.pipeline.Submit(ctx, id, topic)
	})
}

func (s *Server) handleDecision(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunResponse, error) {
	id, _ := args["session_id"].(string)
	choice, _ := args["choice"].(string)
	text, _ := args["text"].(string)
	if id == "" || choice == "" {
		return RunResponse{}, errors.New("session_id and choice are required")
	}
	return s.runAndWait(ctx, id, func() error {
		return s.pipeline.Decide(ctx, id, domain.HumanDecision{Choice: choice, Text: text})
	})
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.pipeline.Inspect(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("inspect failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(state)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.pipeline.Sessions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if ids == nil {
		ids = []string{}
	}
	jsonBytes, _ := json.Marshal(ids)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// runAndWait subscribes before kicking off the run so no notification is missed.
func (s *Server) runAndWait(ctx context.Context, sessionID string, kick func() error) (RunResponse, error) {
	events, cancel := s.pipeline.Subscribe(sessionID)
	defer cancel()

	if err := kick(); err != nil {
		return RunResponse{}, err
	}

	timeout := time.NewTimer(s.wait)
	defer timeout.Stop()

	resp := RunResponse{SessionID: sessionID, Status: "running"}
	for {
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-timeout.C:
			return resp, nil
		case n, ok := <-events:
			if !ok {
				return resp, nil
			}
			if n.Snapshot != nil {
				resp.State = n.Snapshot
			}
			switch n.Type {
			case domain.NotifyDecisionRequired:
				resp.Status = "decision_required"
				resp.Prompt = n.Prompt
				resp.Choices = n.Choices
				return resp, nil
			case domain.NotifyRunCompleted:
				resp.Status = "completed"
				return resp, nil
			case domain.NotifyRunError:
				resp.Status = "error"
				resp.Error = n.Message
				return resp, nil
			}
		}
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Research Pipeline Topology",
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "text/vnd.mermaid",
				Text:     graph.GenerateMermaid(s.pipeline.Graph(), nil),
			},
		}, nil
	})
}
