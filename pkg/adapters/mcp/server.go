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

	"github.com/aretw0/tale/internal/logging"
	"github.com/aretw0/tale/internal/presentation/graph"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	graphURI   = "tale://graph"
	mermaidURI = "tale://graph/mermaid"
)

// SessionResponse aligns with the OpenAPI session schema so both adapters
// return the same structure.
type SessionResponse struct {
	Snapshot domain.Snapshot `json:"snapshot" jsonschema_description:"Progress of the session"`
	View     domain.NodeView `json:"view" jsonschema_description:"The node being presented, with its choices and countdown"`
}

// NodeResponse describes one node of the story graph.
type NodeResponse struct {
	ID          string           `json:"id"`
	Kind        domain.Kind      `json:"kind"`
	Description string           `json:"description"`
	Terminal    bool             `json:"terminal"`
	Choices     []ChoiceResponse `json:"choices"`
}

// ChoiceResponse is an outgoing edge of a node.
type ChoiceResponse struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type chooseArgs struct {
	SessionID string `json:"session_id"`
	Choice    int    `json:"choice"`
}

// Server exposes a session registry as an MCP server.
// MCP is request/response: sessions run on their own clock and agents poll them
// with get_session.
type Server struct {
	registry  *registry.Registry
	graph     *domain.Graph
	logger    *slog.Logger
	version   string
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the version announced to clients.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = strings.TrimSpace(v)
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(reg *registry.Registry, g *domain.Graph, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		graph:    g,
		logger:   logging.NewNop(),
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("tale-mcp", s.version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for in-process clients and tests.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+host))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a new playthrough at the story's entry node. The countdown starts immediately."),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("choose",
		mcp.WithDescription("Submit a choice for the node a session is presenting. Choices are 0-based; an out-of-range index is rejected and the session stays where it is."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID returned by start_session")),
		mcp.WithNumber("choice", mcp.Required(), mcp.Description("0-based index into the node's choices")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleChoose))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get the current node, countdown and history of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleGet))

	s.mcpServer.AddTool(mcp.NewTool("end_session",
		mcp.WithDescription("Stop a session and forget it."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.registry.Delete(id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("session %s ended", id)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the full story graph for introspection."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, err := json.Marshal(nodesFromGraph(s.graph))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("inspect failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, _ map[string]any) (SessionResponse, error) {
	ctrl, err := s.registry.Create(ctx, nil)
	if err != nil {
		return SessionResponse{}, err
	}
	s.logger.Info("MCP: session started", "session_id", ctrl.ID())
	return SessionResponse{Snapshot: ctrl.Snapshot(), View: ctrl.View()}, nil
}

func (s *Server) handleGet(_ context.Context, _ mcp.CallToolRequest, args sessionArgs) (SessionResponse, error) {
	ctrl, err := s.registry.Get(args.SessionID)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{Snapshot: ctrl.Snapshot(), View: ctrl.View()}, nil
}

func (s *Server) handleChoose(_ context.Context, _ mcp.CallToolRequest, args chooseArgs) (SessionResponse, error) {
	ctrl, err := s.registry.Get(args.SessionID)
	if err != nil {
		return SessionResponse{}, err
	}
	if ctrl.Status() == domain.StatusEnded {
		return SessionResponse{}, domain.ErrSessionEnded
	}

	view := ctrl.View()
	ctrl.Submit(args.Choice)
	if args.Choice < 0 || args.Choice >= len(view.Choices) {
		s.logger.Warn("MCP Choose: choice rejected", "session_id", args.SessionID, "choice", args.Choice)
		return SessionResponse{}, &domain.ChoiceError{NodeID: view.NodeID, Index: args.Choice, Count: len(view.Choices)}
	}
	return SessionResponse{Snapshot: ctrl.Snapshot(), View: ctrl.View()}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Story Graph",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(nodesFromGraph(s.graph))
		if err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource(mermaidURI, "Story Graph (Mermaid)",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      mermaidURI,
				MIMEType: "text/plain",
				Text:     graph.GenerateMermaid(s.graph, nil),
			},
		}, nil
	})
}

func nodesFromGraph(g *domain.Graph) []NodeResponse {
	nodes := g.Nodes()
	out := make([]NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		nr := NodeResponse{
			ID:          n.ID,
			Kind:        n.Kind,
			Description: n.Description,
			Terminal:    n.Terminal(),
			Choices:     make([]ChoiceResponse, 0, len(n.Choices)),
		}
		for _, c := range n.Choices {
			nr.Choices = append(nr.Choices, ChoiceResponse{Label: c.Label, Target: c.Target.ID})
		}
		out = append(out, nr)
	}
	return out
}
