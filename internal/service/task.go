package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GustheTrader/Build-flow/internal/domain/task"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

const (
	keyTask         = "task:"
	keyProjectTasks = "project:tasks:"
)

func taskKey(id string) string                { return keyTask + id }
func projectTasksKey(projectID string) string { return keyProjectTasks + projectID }

// TaskService manages project tasks. Each project keeps its tasks in a
// sorted set scored by due date.
type TaskService struct {
	store    kvstore.Store
	projects *ProjectService
	now      func() time.Time
	newID    func() string
}

// NewTaskService creates a TaskService.
func NewTaskService(store kvstore.Store, projects *ProjectService) *TaskService {
	return &TaskService{store: store, projects: projects, now: time.Now, newID: uuid.NewString}
}

// Create adds a task to an existing project.
func (s *TaskService) Create(ctx context.Context, req *task.CreateRequest) (*task.Task, error) {
	if err := task.ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.projects.Get(ctx, req.ProjectID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	t := &task.Task{
		ID:             s.newID(),
		ProjectID:      req.ProjectID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         task.StatusTodo,
		Priority:       req.Priority,
		AssigneeID:     req.AssigneeID,
		AssigneeName:   req.AssigneeName,
		StartDate:      req.StartDate,
		DueDate:        req.DueDate.UTC(),
		EstimatedHours: req.EstimatedHours,
		Dependencies:   req.Dependencies,
		Tags:           req.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if t.Priority == "" {
		t.Priority = task.PriorityMedium
	}
	if err := putJSON(ctx, s.store, taskKey(t.ID), t, 0); err != nil {
		return nil, err
	}
	if err := s.store.ZAdd(ctx, projectTasksKey(t.ProjectID), dueScore(t), t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

func dueScore(t *task.Task) float64 {
	return float64(t.DueDate.UnixMilli())
}

// Get returns a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	t, err := getJSON[task.Task](ctx, s.store, taskKey(id))
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	return t, nil
}

// ListByProject returns a project's tasks ordered by due date.
func (s *TaskService) ListByProject(ctx context.Context, projectID string) ([]task.Task, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	ids, err := s.store.ZRange(ctx, projectTasksKey(projectID))
	if err != nil {
		return nil, err
	}
	return loadAll[task.Task](ctx, s.store, ids, taskKey)
}

// Update applies a partial update. Completing a task stamps its completion
// date; reopening clears it.
func (s *TaskService) Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	if err := task.ValidateUpdateRequest(&req); err != nil {
		return nil, err
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Status != nil && *req.Status != t.Status {
		t.Status = *req.Status
		if t.Status == task.StatusCompleted {
			t.CompletedDate = &now
		} else {
			t.CompletedDate = nil
		}
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.AssigneeID != nil {
		t.AssigneeID = *req.AssigneeID
	}
	if req.AssigneeName != nil {
		t.AssigneeName = *req.AssigneeName
	}
	dueChanged := req.DueDate != nil && !req.DueDate.Equal(t.DueDate)
	if req.DueDate != nil {
		t.DueDate = req.DueDate.UTC()
	}
	if req.ActualHours != nil {
		t.ActualHours = *req.ActualHours
	}
	if req.Dependencies != nil {
		t.Dependencies = req.Dependencies
	}
	t.UpdatedAt = now

	if err := putJSON(ctx, s.store, taskKey(id), t, 0); err != nil {
		return nil, err
	}
	if dueChanged {
		if err := s.store.ZAdd(ctx, projectTasksKey(t.ProjectID), dueScore(t), id); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Delete removes a task and its index entry.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, taskKey(id)); err != nil {
		return err
	}
	return s.store.ZRem(ctx, projectTasksKey(t.ProjectID), id)
}
