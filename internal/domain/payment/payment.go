// Package payment defines recorded payments and gateway status events.
package payment

import (
	"fmt"
	"time"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/finance"
)

// Method is how a payment was made.
type Method string

const (
	MethodCash         Method = "cash"
	MethodCheck        Method = "check"
	MethodCreditCard   Method = "credit_card"
	MethodBankTransfer Method = "bank_transfer"
	MethodOnline       Method = "online"
)

// IsValid reports whether m is a known method.
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodCheck, MethodCreditCard, MethodBankTransfer, MethodOnline:
		return true
	}
	return false
}

// Status is the settlement state of a payment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether the gateway can no longer move the payment.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// Payment is money received against a project and optionally an invoice.
type Payment struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	InvoiceID       string    `json:"invoice_id,omitempty"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	PaymentDate     string    `json:"payment_date"`
	Method          Method    `json:"payment_method"`
	Status          Status    `json:"status"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	GatewayIntentID string    `json:"gateway_intent_id,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to record a payment.
type CreateRequest struct {
	ProjectID       string  `json:"project_id"`
	InvoiceID       string  `json:"invoice_id"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	PaymentDate     string  `json:"payment_date"`
	Method          Method  `json:"payment_method"`
	ReferenceNumber string  `json:"reference_number"`
	GatewayIntentID string  `json:"gateway_intent_id"`
	Notes           string  `json:"notes"`
}

// Filter narrows payment listings.
type Filter struct {
	ProjectID string
	InvoiceID string
	Method    Method
	StartDate string
	EndDate   string
}

// Matches reports whether p satisfies f.
func (f Filter) Matches(p *Payment) bool {
	switch {
	case f.ProjectID != "" && p.ProjectID != f.ProjectID:
		return false
	case f.InvoiceID != "" && p.InvoiceID != f.InvoiceID:
		return false
	case f.Method != "" && p.Method != f.Method:
		return false
	case f.StartDate != "" && p.PaymentDate < f.StartDate:
		return false
	case f.EndDate != "" && p.PaymentDate > f.EndDate:
		return false
	}
	return true
}

// ValidateCreateRequest validates a payment creation request.
func ValidateCreateRequest(req *CreateRequest) error {
	if req.ProjectID == "" {
		return fmt.Errorf("project_id is required: %w", domain.ErrValidation)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("amount must be positive: %w", domain.ErrValidation)
	}
	if !req.Method.IsValid() {
		return fmt.Errorf("unknown payment_method %q: %w", req.Method, domain.ErrValidation)
	}
	return finance.ValidateDate("payment_date", req.PaymentDate, false)
}

// GatewayEvent is a normalized asynchronous status notification from the
// payment gateway, keyed by the gateway's payment intent ID.
type GatewayEvent struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	IntentID string  `json:"intent_id"`
	Amount   float64 `json:"amount,omitempty"`
}

// StatusForEvent maps a gateway event type onto a payment status.
// The boolean is false for event types this service does not track.
func StatusForEvent(eventType string) (Status, bool) {
	switch eventType {
	case "payment_intent.succeeded":
		return StatusCompleted, true
	case "payment_intent.processing":
		return StatusProcessing, true
	case "payment_intent.payment_failed":
		return StatusFailed, true
	case "payment_intent.canceled":
		return StatusCancelled, true
	case "charge.refunded":
		return StatusRefunded, true
	}
	return "", false
}
