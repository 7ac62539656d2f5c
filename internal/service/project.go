// Package service implements business logic on top of ports.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/GustheTrader/Build-flow/internal/agents"
	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/invoice"
	"github.com/GustheTrader/Build-flow/internal/domain/project"
	"github.com/GustheTrader/Build-flow/internal/domain/task"
	"github.com/GustheTrader/Build-flow/internal/domain/workflow"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

const (
	keyProject        = "project:"
	keyProjectsAll    = "projects:all"
	keyProjectsStatus = "projects:status:"
	defaultListLimit  = 100
)

func projectKey(id string) string { return keyProject + id }

// ProjectService handles project business logic.
type ProjectService struct {
	store      kvstore.Store
	dispatcher *Dispatcher
	runner     *WorkflowRunner
	now        func() time.Time
	newID      func() string
}

// NewProjectService creates a ProjectService. dispatcher and runner may be
// nil, which disables planning on create and forecasts in Metrics.
func NewProjectService(store kvstore.Store, dispatcher *Dispatcher, runner *WorkflowRunner) *ProjectService {
	return &ProjectService{store: store, dispatcher: dispatcher, runner: runner, now: time.Now, newID: uuid.NewString}
}

// List returns projects newest first, optionally filtered by status.
// limit <= 0 uses the default of 100.
func (s *ProjectService) List(ctx context.Context, status project.Status, limit int) ([]project.Project, error) {
	setKey := keyProjectsAll
	if status != "" {
		setKey = keyProjectsStatus + string(status)
	}
	ids, err := s.store.SMembers(ctx, setKey)
	if err != nil {
		return nil, err
	}
	projects, err := loadAll[project.Project](ctx, s.store, ids, projectKey)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(projects, func(a, b project.Project) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(projects) > limit {
		projects = projects[:limit]
	}
	return projects, nil
}

// Get returns a project by ID.
func (s *ProjectService) Get(ctx context.Context, id string) (*project.Project, error) {
	p, err := getJSON[project.Project](ctx, s.store, projectKey(id))
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", id, err)
	}
	return p, nil
}

// Create stores a new project and runs the project planning workflow for it.
// Planning is best-effort; review requests it raises are recorded on the project.
func (s *ProjectService) Create(ctx context.Context, req *project.CreateRequest) (*project.Project, error) {
	if err := project.ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &project.Project{
		ID:             s.newID(),
		Name:           req.Name,
		Description:    req.Description,
		Status:         req.Status,
		Type:           req.Type,
		ClientID:       req.ClientID,
		ClientName:     req.ClientName,
		ProjectManager: req.ProjectManager,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Budget:         req.Budget,
		Location:       req.Location,
		Tags:           req.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Status == "" {
		p.Status = project.StatusPlanning
	}

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	if err := s.store.SAdd(ctx, keyProjectsAll, p.ID); err != nil {
		return nil, err
	}
	if err := s.store.SAdd(ctx, keyProjectsStatus+string(p.Status), p.ID); err != nil {
		return nil, err
	}

	if s.runner != nil {
		s.plan(ctx, p)
	}
	return p, nil
}

func (s *ProjectService) plan(ctx context.Context, p *project.Project) {
	res, err := s.runner.Run(ctx, workflow.ProjectPlanning, map[string]any{
		"projectId":   p.ID,
		"name":        p.Name,
		"budget":      p.Budget,
		"projectType": string(p.Type),
	}, p.ID)
	if err != nil {
		slog.WarnContext(ctx, "project planning failed", "project_id", p.ID, "error", err)
		return
	}
	labels := make([]string, 0, len(res.StepResults)+1)
	if res.OrchestrationStep.HITLRequired {
		labels = append(labels, "orchestration")
	}
	for _, sr := range res.StepResults {
		if sr.Result.HITLRequired {
			labels = append(labels, sr.StepLabel)
		}
	}
	if len(labels) == 0 {
		return
	}
	p.PlanningReview = labels
	if err := s.save(ctx, p); err != nil {
		slog.WarnContext(ctx, "recording planning reviews failed", "project_id", p.ID, "error", err)
	}
}

// Update applies partial updates to a project and keeps the status index current.
func (s *ProjectService) Update(ctx context.Context, id string, req project.UpdateRequest) (*project.Project, error) {
	if err := project.ValidateUpdateRequest(&req); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := p.Status

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.ProjectManager != nil {
		p.ProjectManager = *req.ProjectManager
	}
	if req.EndDate != nil {
		p.EndDate = *req.EndDate
	}
	if req.Budget != nil {
		p.Budget = *req.Budget
	}
	if req.ActualCost != nil {
		p.ActualCost = *req.ActualCost
	}
	if req.Completion != nil {
		p.Completion = *req.Completion
	}
	if req.Location != nil {
		p.Location = *req.Location
	}
	if req.Tags != nil {
		p.Tags = req.Tags
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	if p.Status != oldStatus {
		if err := s.store.SRem(ctx, keyProjectsStatus+string(oldStatus), id); err != nil {
			return nil, err
		}
		if err := s.store.SAdd(ctx, keyProjectsStatus+string(p.Status), id); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Delete removes a project and its index entries. Tasks, invoices and
// payments that reference it are left in place.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, projectKey(id)); err != nil {
		return err
	}
	if err := s.store.SRem(ctx, keyProjectsAll, id); err != nil {
		return err
	}
	return s.store.SRem(ctx, keyProjectsStatus+string(p.Status), id)
}

// Count returns the number of projects per status.
func (s *ProjectService) Count(ctx context.Context) (map[project.Status]int, error) {
	out := make(map[project.Status]int, len(project.Statuses))
	for _, st := range project.Statuses {
		ids, err := s.store.SMembers(ctx, keyProjectsStatus+string(st))
		if err != nil {
			return nil, err
		}
		out[st] = len(ids)
	}
	return out, nil
}

// Metrics derives the financial and schedule view of a project. The cost
// forecast comes from the ML pipeline agent when a dispatcher is wired.
func (s *ProjectService) Metrics(ctx context.Context, id string) (*project.Metrics, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	taskIDs, err := s.store.ZRange(ctx, projectTasksKey(id))
	if err != nil {
		return nil, err
	}
	tasks, err := loadAll[task.Task](ctx, s.store, taskIDs, taskKey)
	if err != nil {
		return nil, err
	}

	now := s.now()
	m := &project.Metrics{
		ProjectID:  id,
		Budget:     p.Budget,
		ActualCost: p.ActualCost,
		TaskCounts: make(map[string]int),
	}
	completed := 0
	for i := range tasks {
		m.TaskCounts[string(tasks[i].Status)]++
		if tasks[i].Status == task.StatusCompleted {
			completed++
		}
		if tasks[i].IsOverdue(now) {
			m.OverdueTasks++
		}
	}
	m.Completion = p.Completion
	if m.Completion == 0 && len(tasks) > 0 {
		m.Completion = float64(completed) / float64(len(tasks))
	}

	forecastIn := map[string]any{"budget": p.Budget, "actualCost": p.ActualCost, "completion": m.Completion}
	if s.dispatcher != nil {
		rec, err := s.dispatcher.Execute(ctx, agent.KindMLPipeline, agent.Input{"task": "cost_forecast", "data": forecastIn}, id)
		if err != nil {
			return nil, err
		}
		m.ForecastConfidence = rec.Confidence
		forecastIn = rec.Payload
	} else {
		forecastIn = agents.ForecastCost(forecastIn)
	}
	m.ForecastedTotalCost, _ = forecastIn["forecastedTotalCost"].(float64)
	m.BudgetVariance, _ = forecastIn["variance"].(float64)

	invIDs, err := s.store.SMembers(ctx, projectInvoicesKey(id))
	if err != nil {
		return nil, err
	}
	invoices, err := loadAll[invoice.Invoice](ctx, s.store, invIDs, invoiceKey)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		if invoices[i].Status == invoice.StatusCancelled {
			continue
		}
		m.InvoicedAmount += invoices[i].Total
		m.PaidAmount += invoices[i].AmountPaid
		m.OutstandingAmount += invoices[i].AmountDue
	}
	return m, nil
}

func (s *ProjectService) save(ctx context.Context, p *project.Project) error {
	return putJSON(ctx, s.store, projectKey(p.ID), p, 0)
}
