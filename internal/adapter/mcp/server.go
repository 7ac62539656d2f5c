// Package mcp exposes the agent dispatcher and the review queue to
// MCP-compatible clients over the streamable HTTP transport.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/review"
	"github.com/GustheTrader/Build-flow/internal/domain/workflow"
)

// AgentExecutor runs agents by their API-facing name.
type AgentExecutor interface {
	ExecuteNamed(ctx context.Context, name string, in agent.Input, projectID string) (agent.Recommendation, error)
	Metrics() map[agent.Kind]agent.MetricsRecord
}

// WorkflowRunner runs named multi-agent workflows.
type WorkflowRunner interface {
	Run(ctx context.Context, name string, wctx map[string]any, projectID string) (*workflow.Result, error)
}

// ReviewQueue lists and resolves human review requests.
type ReviewQueue interface {
	List(ctx context.Context, status review.Status) ([]review.Request, error)
	Approve(ctx context.Context, id, reviewerID, notes string) (*review.Request, error)
	Reject(ctx context.Context, id, reviewerID, notes string) (*review.Request, error)
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// ServerDeps are the services behind the tools. Any of them may be nil, in
// which case the matching tools report that they are not configured.
type ServerDeps struct {
	Agents    AgentExecutor
	Workflows WorkflowRunner
	Reviews   ReviewQueue
	// Authn authenticates requests and attaches the caller's principal.
	Authn func(http.Handler) http.Handler
}

// Server is the MCP server.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	httpSrv   *http.Server
}

// NewServer creates the MCP server and registers its tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.mcpServer = mcpserver.NewMCPServer(
		cfg.Name,
		cfg.Version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler serves the streamable HTTP transport at /mcp behind the
// configured authentication.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", guard(s.deps.Authn, mcpserver.NewStreamableHTTPServer(s.mcpServer)))
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen %s: %w", s.cfg.Addr, err)
	}
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server error", "error", err)
		}
	}()
	slog.Info("mcp server started", "addr", ln.Addr().String())
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
