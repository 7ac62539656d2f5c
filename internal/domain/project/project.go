// Package project defines the construction Project entity.
package project

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/GustheTrader/Build-flow/internal/domain"
)

// Status represents the lifecycle state of a project.
type Status string

const (
	StatusPlanning   Status = "planning"
	StatusInProgress Status = "in_progress"
	StatusOnHold     Status = "on_hold"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every project status.
var Statuses = []Status{StatusPlanning, StatusInProgress, StatusOnHold, StatusCompleted, StatusCancelled}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Type is the construction category of a project.
type Type string

const (
	TypeResidential     Type = "residential"
	TypeCommercial      Type = "commercial"
	TypeIndustrial      Type = "industrial"
	TypeRenovation      Type = "renovation"
	TypeNewConstruction Type = "new_construction"
)

// Location is the site address of a project.
type Location struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// Project is a construction project tracked by the platform.
type Project struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Status         Status    `json:"status"`
	Type           Type      `json:"type"`
	ClientID       string    `json:"client_id"`
	ClientName     string    `json:"client_name"`
	ProjectManager string    `json:"project_manager"`
	StartDate      string    `json:"start_date,omitempty"`
	EndDate        string    `json:"end_date,omitempty"`
	Budget         float64   `json:"budget"`
	ActualCost     float64   `json:"actual_cost"`
	Completion     float64   `json:"completion"` // fraction in [0,1]
	Location       Location  `json:"location"`
	Tags           []string  `json:"tags,omitempty"`
	PlanningReview []string  `json:"planning_review,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a project.
type CreateRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Status         Status   `json:"status"`
	Type           Type     `json:"type"`
	ClientID       string   `json:"client_id"`
	ClientName     string   `json:"client_name"`
	ProjectManager string   `json:"project_manager"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	Budget         float64  `json:"budget"`
	Location       Location `json:"location"`
	Tags           []string `json:"tags"`
}

// UpdateRequest holds optional fields for a partial update.
type UpdateRequest struct {
	Name           *string   `json:"name,omitempty"`
	Description    *string   `json:"description,omitempty"`
	Status         *Status   `json:"status,omitempty"`
	ProjectManager *string   `json:"project_manager,omitempty"`
	EndDate        *string   `json:"end_date,omitempty"`
	Budget         *float64  `json:"budget,omitempty"`
	ActualCost     *float64  `json:"actual_cost,omitempty"`
	Completion     *float64  `json:"completion,omitempty"`
	Location       *Location `json:"location,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
}

// ValidateCreateRequest validates the fields of a project creation request.
func ValidateCreateRequest(req *CreateRequest) error {
	if err := validateName(req.Name); err != nil {
		return err
	}
	if req.Budget < 0 {
		return fmt.Errorf("budget must not be negative: %w", domain.ErrValidation)
	}
	if req.Status != "" && !req.Status.IsValid() {
		return fmt.Errorf("unknown status %q: %w", req.Status, domain.ErrValidation)
	}
	return nil
}

// ValidateUpdateRequest validates the fields present in a partial update.
func ValidateUpdateRequest(req *UpdateRequest) error {
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return err
		}
	}
	if req.Status != nil && !req.Status.IsValid() {
		return fmt.Errorf("unknown status %q: %w", *req.Status, domain.ErrValidation)
	}
	if req.Budget != nil && *req.Budget < 0 {
		return fmt.Errorf("budget must not be negative: %w", domain.ErrValidation)
	}
	if req.ActualCost != nil && *req.ActualCost < 0 {
		return fmt.Errorf("actual_cost must not be negative: %w", domain.ErrValidation)
	}
	if req.Completion != nil && (*req.Completion < 0 || *req.Completion > 1) {
		return fmt.Errorf("completion must be in [0,1]: %w", domain.ErrValidation)
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if len(name) > 255 {
		return fmt.Errorf("name exceeds 255 characters: %w", domain.ErrValidation)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("name contains control characters: %w", domain.ErrValidation)
		}
	}
	return nil
}

// Metrics is the derived financial and schedule view of a project.
type Metrics struct {
	ProjectID           string         `json:"project_id"`
	Budget              float64        `json:"budget"`
	ActualCost          float64        `json:"actual_cost"`
	Completion          float64        `json:"completion"`
	ForecastedTotalCost float64        `json:"forecasted_total_cost"`
	BudgetVariance      float64        `json:"budget_variance"`
	ForecastConfidence  float64        `json:"forecast_confidence"`
	TaskCounts          map[string]int `json:"task_counts"`
	OverdueTasks        int            `json:"overdue_tasks"`
	InvoicedAmount      float64        `json:"invoiced_amount"`
	PaidAmount          float64        `json:"paid_amount"`
	OutstandingAmount   float64        `json:"outstanding_amount"`
}
