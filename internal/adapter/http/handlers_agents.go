package http

import (
	"net/http"

	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/review"
)

// ExecuteRequest is the body of POST /ai-agents/execute.
type ExecuteRequest struct {
	AgentType string      `json:"agentType"`
	Input     agent.Input `json:"input"`
	ProjectID string      `json:"projectId,omitempty"`
}

// OrchestrateRequest is the body of POST /ai-agents/orchestrate.
type OrchestrateRequest struct {
	Workflow  string         `json:"workflow"`
	Context   map[string]any `json:"context"`
	ProjectID string         `json:"projectId,omitempty"`
}

// ReviewDecisionRequest is the body of the approve, reject and modify routes.
type ReviewDecisionRequest struct {
	Notes   string         `json:"notes"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ExecuteAgent handles POST /api/v1/ai-agents/execute.
func (h *Handlers) ExecuteAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[ExecuteRequest](w, r, h.limit())
	if !ok {
		return
	}
	if !requireField(w, req.AgentType, "agentType") {
		return
	}
	rec, err := h.Dispatcher.ExecuteNamed(r.Context(), req.AgentType, req.Input, req.ProjectID)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Orchestrate handles POST /api/v1/ai-agents/orchestrate.
func (h *Handlers) Orchestrate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[OrchestrateRequest](w, r, h.limit())
	if !ok {
		return
	}
	if !requireField(w, req.Workflow, "workflow") {
		return
	}
	res, err := h.Workflows.Run(r.Context(), req.Workflow, req.Context, req.ProjectID)
	if err != nil {
		writeDomainError(w, err, "workflow not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AgentMetrics handles GET /api/v1/ai-agents/metrics.
func (h *Handlers) AgentMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Dispatcher.Metrics())
}

// AgentHealth handles GET /api/v1/ai-agents/health.
func (h *Handlers) AgentHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.Dispatcher.Health(r.Context())
	if err != nil {
		writeDomainError(w, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, health)
}

// ListReviews handles GET /api/v1/ai-agents/hitl?status=.
func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	status, err := review.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	reqs, err := h.Reviews.List(r.Context(), status)
	if err != nil {
		writeDomainError(w, err, "not found")
		return
	}
	if reqs == nil {
		reqs = []review.Request{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// GetReview handles GET /api/v1/ai-agents/hitl/{id}.
func (h *Handlers) GetReview(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Reviews.Get, "review request not found")(w, r)
}

// ApproveReview handles POST /api/v1/ai-agents/hitl/{id}/approve.
func (h *Handlers) ApproveReview(w http.ResponseWriter, r *http.Request) {
	req, ok := readOptionalJSON[ReviewDecisionRequest](w, r, h.limit())
	if !ok {
		return
	}
	h.writeReview(w)(h.Reviews.Approve(r.Context(), urlParam(r, "id"), subject(r), req.Notes))
}

// RejectReview handles POST /api/v1/ai-agents/hitl/{id}/reject.
func (h *Handlers) RejectReview(w http.ResponseWriter, r *http.Request) {
	req, ok := readOptionalJSON[ReviewDecisionRequest](w, r, h.limit())
	if !ok {
		return
	}
	h.writeReview(w)(h.Reviews.Reject(r.Context(), urlParam(r, "id"), subject(r), req.Notes))
}

// ModifyReview handles POST /api/v1/ai-agents/hitl/{id}/modify.
func (h *Handlers) ModifyReview(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[ReviewDecisionRequest](w, r, h.limit())
	if !ok {
		return
	}
	h.writeReview(w)(h.Reviews.Modify(r.Context(), urlParam(r, "id"), subject(r), req.Notes, req.Payload))
}

func (h *Handlers) writeReview(w http.ResponseWriter) func(*review.Request, error) {
	return func(req *review.Request, err error) {
		if err != nil {
			writeDomainError(w, err, "review request not found")
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
