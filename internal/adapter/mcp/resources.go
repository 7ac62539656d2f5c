package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/GustheTrader/Build-flow/internal/domain/review"
)

const (
	uriPendingReviews = "buildflow://reviews/pending"
	uriAgentMetrics   = "buildflow://agents/metrics"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriPendingReviews,
			"Pending Reviews",
			mcplib.WithResourceDescription("Review requests awaiting a human decision, oldest first"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handlePendingReviews,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriAgentMetrics,
			"Agent Metrics",
			mcplib.WithResourceDescription("Per-agent execution statistics"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAgentMetricsResource,
	)
}

func (s *Server) handlePendingReviews(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Reviews == nil {
		return jsonResource(req.Params.URI, map[string]string{"error": "review queue not configured"})
	}
	reqs, err := s.deps.Reviews.List(ctx, review.StatusPending)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []review.Request{}
	}
	return jsonResource(req.Params.URI, reqs)
}

func (s *Server) handleAgentMetricsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Agents == nil {
		return jsonResource(req.Params.URI, map[string]string{"error": "agent dispatcher not configured"})
	}
	return jsonResource(req.Params.URI, s.deps.Agents.Metrics())
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
