// Package review defines the human review request raised for low-confidence
// recommendations and its lifecycle.
package review

import (
	"fmt"
	"time"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/agent"
)

// Status represents the lifecycle state of a review request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusModified Status = "modified"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusModified:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusModified
}

// Request is a persisted human review of one Recommendation.
// The embedded Recommendation is a frozen copy taken at enqueue time.
type Request struct {
	ID              string               `json:"id"`
	ProjectID       string               `json:"project_id,omitempty"`
	Recommendation  agent.Recommendation `json:"recommendation"`
	Status          Status               `json:"status"`
	ReviewerID      string               `json:"reviewer_id,omitempty"`
	ReviewerNotes   string               `json:"reviewer_notes,omitempty"`
	ReviewedAt      *time.Time           `json:"reviewed_at,omitempty"`
	ModifiedPayload map[string]any       `json:"modified_payload,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// Decision is a reviewer action applied to a pending request.
type Decision struct {
	ReviewerID string
	Notes      string
	Payload    map[string]any // replacement payload, only for StatusModified
}

// Resolve moves a pending request into the target terminal state.
func (r *Request) Resolve(target Status, d Decision, now time.Time) error {
	if !target.IsTerminal() {
		return fmt.Errorf("resolve review %s to %q: %w", r.ID, target, domain.ErrInvalidTransition)
	}
	if r.Status != StatusPending {
		return fmt.Errorf("review %s is %s, not pending: %w", r.ID, r.Status, domain.ErrInvalidTransition)
	}
	if d.ReviewerID == "" {
		return fmt.Errorf("reviewer id is required: %w", domain.ErrValidation)
	}
	if target == StatusModified && len(d.Payload) == 0 {
		return fmt.Errorf("modified review needs a replacement payload: %w", domain.ErrValidation)
	}
	at := now.UTC()
	r.Status = target
	r.ReviewerID = d.ReviewerID
	r.ReviewerNotes = d.Notes
	r.ReviewedAt = &at
	if target == StatusModified {
		r.ModifiedPayload = d.Payload
	}
	return nil
}

// ParseStatus validates an optional status filter. An empty string means "all".
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", nil
	}
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown review status %q: %w", s, domain.ErrValidation)
	}
	return st, nil
}
