// Package task defines the project Task entity.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/GustheTrader/Build-flow/internal/domain"
)

// Status represents the current state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusBlocked, StatusCompleted:
		return true
	}
	return false
}

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is a scheduled unit of site work within a project.
type Task struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         Status     `json:"status"`
	Priority       Priority   `json:"priority"`
	AssigneeID     string     `json:"assignee_id,omitempty"`
	AssigneeName   string     `json:"assignee_name,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	DueDate        time.Time  `json:"due_date"`
	CompletedDate  *time.Time `json:"completed_date,omitempty"`
	EstimatedHours float64    `json:"estimated_hours"`
	ActualHours    float64    `json:"actual_hours,omitempty"`
	Dependencies   []string   `json:"dependencies,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsOverdue reports whether the task is open past its due date.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status != StatusCompleted && t.DueDate.Before(now)
}

// CreateRequest holds the fields needed to create a new task.
type CreateRequest struct {
	ProjectID      string     `json:"project_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       Priority   `json:"priority"`
	AssigneeID     string     `json:"assignee_id"`
	AssigneeName   string     `json:"assignee_name"`
	StartDate      *time.Time `json:"start_date"`
	DueDate        time.Time  `json:"due_date"`
	EstimatedHours float64    `json:"estimated_hours"`
	Dependencies   []string   `json:"dependencies"`
	Tags           []string   `json:"tags"`
}

// UpdateRequest holds optional fields for a partial update.
type UpdateRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Status       *Status    `json:"status,omitempty"`
	Priority     *Priority  `json:"priority,omitempty"`
	AssigneeID   *string    `json:"assignee_id,omitempty"`
	AssigneeName *string    `json:"assignee_name,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ActualHours  *float64   `json:"actual_hours,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty"`
}

// ValidateCreateRequest validates a task creation request.
func ValidateCreateRequest(req *CreateRequest) error {
	if req.ProjectID == "" {
		return fmt.Errorf("project_id is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if req.DueDate.IsZero() {
		return fmt.Errorf("due_date is required: %w", domain.ErrValidation)
	}
	if req.Priority != "" && !req.Priority.IsValid() {
		return fmt.Errorf("unknown priority %q: %w", req.Priority, domain.ErrValidation)
	}
	if req.EstimatedHours < 0 {
		return fmt.Errorf("estimated_hours must not be negative: %w", domain.ErrValidation)
	}
	return nil
}

// ValidateUpdateRequest validates the fields present in a partial update.
func ValidateUpdateRequest(req *UpdateRequest) error {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return fmt.Errorf("title must not be empty: %w", domain.ErrValidation)
	}
	if req.Status != nil && !req.Status.IsValid() {
		return fmt.Errorf("unknown status %q: %w", *req.Status, domain.ErrValidation)
	}
	if req.Priority != nil && !req.Priority.IsValid() {
		return fmt.Errorf("unknown priority %q: %w", *req.Priority, domain.ErrValidation)
	}
	return nil
}
