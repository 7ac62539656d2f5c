package http

import (
	"context"
	"net/http"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/project"
	"github.com/GustheTrader/Build-flow/internal/domain/task"
)

// ListProjects handles GET /api/v1/projects?status=&limit=.
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	status := project.Status(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid status", domain.CodeValidation)
		return
	}
	limit, ok := queryInt(r, "limit")
	if !ok || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", domain.CodeValidation)
		return
	}
	handleList(func(ctx context.Context) ([]project.Project, error) {
		return h.Projects.List(ctx, status, limit)
	})(w, r)
}

// GetProject handles GET /api/v1/projects/{id}.
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Projects.Get, "project not found")(w, r)
}

// CreateProject handles POST /api/v1/projects. Creation also runs the
// planning workflow, so the response carries the planning review labels.
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	handleCreate(h.limit(), func(ctx context.Context, req *project.CreateRequest, _ string) (*project.Project, error) {
		return h.Projects.Create(ctx, req)
	})(w, r)
}

// UpdateProject handles PUT /api/v1/projects/{id}.
func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.limit(), h.Projects.Update, "project not found")(w, r)
}

// DeleteProject handles DELETE /api/v1/projects/{id}.
func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.Projects.Delete, "project not found")(w, r)
}

// ProjectMetrics handles GET /api/v1/projects/{id}/metrics.
func (h *Handlers) ProjectMetrics(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Projects.Metrics, "project not found")(w, r)
}

// ListProjectTasks handles GET /api/v1/projects/{id}/tasks.
func (h *Handlers) ListProjectTasks(w http.ResponseWriter, r *http.Request) {
	handleListByParam("id", h.Tasks.ListByProject, "project not found")(w, r)
}

// CreateProjectTask handles POST /api/v1/projects/{id}/tasks. The project
// in the path wins over any project_id in the body.
func (h *Handlers) CreateProjectTask(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "id")
	handleCreate(h.limit(), func(ctx context.Context, req *task.CreateRequest, _ string) (*task.Task, error) {
		req.ProjectID = projectID
		return h.Tasks.Create(ctx, req)
	})(w, r)
}

// GetTask handles GET /api/v1/tasks/{id}.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Tasks.Get, "task not found")(w, r)
}

// UpdateTask handles PUT /api/v1/tasks/{id}.
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.limit(), h.Tasks.Update, "task not found")(w, r)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.Tasks.Delete, "task not found")(w, r)
}
