package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/review"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.executeAgentTool(),
		s.runWorkflowTool(),
		s.listReviewsTool(),
		s.decideReviewTool("approve_review", "Approve a pending review request", s.approve),
		s.decideReviewTool("reject_review", "Reject a pending review request", s.reject),
		s.agentMetricsTool(),
	)
}

func (s *Server) executeAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("execute_agent",
		mcplib.WithDescription("Run one agent and return its recommendation. Low-confidence results are queued for human review."),
		mcplib.WithString("agent_type",
			mcplib.Required(),
			mcplib.Description("Agent name, e.g. validation, minimax or cost_forecast_agent"),
		),
		mcplib.WithObject("input",
			mcplib.Description("Agent input fields"),
		),
		mcplib.WithString("project_id",
			mcplib.Description("Project the execution belongs to"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleExecuteAgent}
}

func (s *Server) runWorkflowTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("run_workflow",
		mcplib.WithDescription("Run a named multi-agent workflow such as project_planning"),
		mcplib.WithString("workflow",
			mcplib.Required(),
			mcplib.Description("Workflow name"),
		),
		mcplib.WithObject("context",
			mcplib.Description("Workflow context"),
		),
		mcplib.WithString("project_id",
			mcplib.Description("Project the run belongs to"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRunWorkflow}
}

func (s *Server) listReviewsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_reviews",
		mcplib.WithDescription("List human review requests, optionally by status"),
		mcplib.WithString("status",
			mcplib.Description("Filter by status"),
			mcplib.Enum(string(review.StatusPending), string(review.StatusApproved), string(review.StatusRejected), string(review.StatusModified)),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListReviews}
}

type decideFunc func(ctx context.Context, id, reviewerID, notes string) (*review.Request, error)

func (s *Server) decideReviewTool(name, desc string, decide decideFunc) mcpserver.ServerTool {
	tool := mcplib.NewTool(name,
		mcplib.WithDescription(desc),
		mcplib.WithString("id",
			mcplib.Required(),
			mcplib.Description("Review request ID"),
		),
		mcplib.WithString("notes",
			mcplib.Description("Reviewer notes"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.decisionHandler(decide)}
}

func (s *Server) agentMetricsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("agent_metrics",
		mcplib.WithDescription("Per-agent call counts, average latency and error counts"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleAgentMetrics}
}

func (s *Server) handleExecuteAgent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent dispatcher not configured"), nil
	}
	if err := requireEditor(ctx); err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	name := req.GetString("agent_type", "")
	if name == "" {
		return mcplib.NewToolResultError("agent_type is required"), nil
	}
	in, _ := req.GetArguments()["input"].(map[string]any)
	rec, err := s.deps.Agents.ExecuteNamed(ctx, name, agent.Input(in), req.GetString("project_id", ""))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("agent %s failed", name), err), nil
	}
	return toolResultJSON(rec), nil
}

func (s *Server) handleRunWorkflow(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Workflows == nil {
		return mcplib.NewToolResultError("workflow runner not configured"), nil
	}
	if err := requireEditor(ctx); err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	name := req.GetString("workflow", "")
	if name == "" {
		return mcplib.NewToolResultError("workflow is required"), nil
	}
	wctx, _ := req.GetArguments()["context"].(map[string]any)
	res, err := s.deps.Workflows.Run(ctx, name, wctx, req.GetString("project_id", ""))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("workflow %s failed", name), err), nil
	}
	return toolResultJSON(res), nil
}

func (s *Server) handleListReviews(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reviews == nil {
		return mcplib.NewToolResultError("review queue not configured"), nil
	}
	status, err := review.ParseStatus(req.GetString("status", ""))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("invalid status", err), nil
	}
	reqs, err := s.deps.Reviews.List(ctx, status)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list reviews", err), nil
	}
	if reqs == nil {
		reqs = []review.Request{}
	}
	return toolResultJSON(reqs), nil
}

func (s *Server) approve(ctx context.Context, id, reviewerID, notes string) (*review.Request, error) {
	return s.deps.Reviews.Approve(ctx, id, reviewerID, notes)
}

func (s *Server) reject(ctx context.Context, id, reviewerID, notes string) (*review.Request, error) {
	return s.deps.Reviews.Reject(ctx, id, reviewerID, notes)
}

func (s *Server) decisionHandler(decide decideFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
		if s.deps.Reviews == nil {
			return mcplib.NewToolResultError("review queue not configured"), nil
		}
		id := req.GetString("id", "")
		if id == "" {
			return mcplib.NewToolResultError("id is required"), nil
		}
		r, err := decide(ctx, id, reviewer(ctx), req.GetString("notes", ""))
		if err != nil {
			return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to resolve review %s", id), err), nil
		}
		return toolResultJSON(r), nil
	}
}

func (s *Server) handleAgentMetrics(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent dispatcher not configured"), nil
	}
	return toolResultJSON(s.deps.Agents.Metrics()), nil
}

// toolResultJSON renders v as a JSON text result.
func toolResultJSON(v any) *mcplib.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err)
	}
	return mcplib.NewToolResultText(string(data))
}
