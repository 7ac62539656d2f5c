// Package invoice defines client invoices and their status lifecycle.
package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/finance"
)

// Status is the canonical invoice status set.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every invoice status in display order.
var Statuses = []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// LineItem is one billed line.
type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// LineInput is a line item as submitted by a client.
type LineInput struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Invoice is a bill issued to a project client.
type Invoice struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	InvoiceNumber string     `json:"invoice_number"`
	ClientID      string     `json:"client_id"`
	ClientName    string     `json:"client_name"`
	IssueDate     string     `json:"issue_date"`
	DueDate       string     `json:"due_date"`
	Status        Status     `json:"status"`
	LineItems     []LineItem `json:"line_items"`
	Subtotal      float64    `json:"subtotal"`
	Tax           float64    `json:"tax"`
	TaxRate       float64    `json:"tax_rate"`
	Total         float64    `json:"total"`
	AmountPaid    float64    `json:"amount_paid"`
	AmountDue     float64    `json:"amount_due"`
	Notes         string     `json:"notes,omitempty"`
	PaymentTerms  string     `json:"payment_terms,omitempty"`
	CreatedBy     string     `json:"created_by"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CreateRequest holds the fields needed to create an invoice.
type CreateRequest struct {
	ProjectID    string      `json:"project_id"`
	ClientID     string      `json:"client_id"`
	ClientName   string      `json:"client_name"`
	IssueDate    string      `json:"issue_date"`
	DueDate      string      `json:"due_date"`
	LineItems    []LineInput `json:"line_items"`
	TaxRate      float64     `json:"tax_rate"`
	Notes        string      `json:"notes"`
	PaymentTerms string      `json:"payment_terms"`
}

// UpdateRequest holds optional fields for a partial update.
type UpdateRequest struct {
	IssueDate    *string     `json:"issue_date,omitempty"`
	DueDate      *string     `json:"due_date,omitempty"`
	LineItems    []LineInput `json:"line_items,omitempty"`
	TaxRate      *float64    `json:"tax_rate,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
	PaymentTerms *string     `json:"payment_terms,omitempty"`
	Status       *Status     `json:"status,omitempty"`
}

// Filter narrows invoice listings. Zero fields match everything.
type Filter struct {
	ProjectID string
	Status    Status
	ClientID  string
	StartDate string
	EndDate   string
	Search    string
}

// Stats summarizes a set of invoices.
type Stats struct {
	TotalInvoices    int            `json:"total_invoices"`
	TotalAmount      float64        `json:"total_amount"`
	TotalPaid        float64        `json:"total_paid"`
	TotalOutstanding float64        `json:"total_outstanding"`
	OverdueAmount    float64        `json:"overdue_amount"`
	ByStatus         map[Status]int `json:"by_status"`
}

// ValidateCreateRequest checks required fields, amounts and dates.
func ValidateCreateRequest(req *CreateRequest) error {
	if req.ProjectID == "" {
		return fmt.Errorf("project_id is required: %w", domain.ErrValidation)
	}
	if req.ClientID == "" {
		return fmt.Errorf("client_id is required: %w", domain.ErrValidation)
	}
	if err := finance.ValidateDate("issue_date", req.IssueDate, false); err != nil {
		return err
	}
	if err := finance.ValidateDate("due_date", req.DueDate, false); err != nil {
		return err
	}
	if req.DueDate < req.IssueDate {
		return fmt.Errorf("due_date precedes issue_date: %w", domain.ErrValidation)
	}
	return validateLines(req.LineItems, req.TaxRate)
}

// ValidateUpdateRequest checks the fields present in a partial update.
func ValidateUpdateRequest(req *UpdateRequest) error {
	if req.IssueDate != nil {
		if err := finance.ValidateDate("issue_date", *req.IssueDate, false); err != nil {
			return err
		}
	}
	if req.DueDate != nil {
		if err := finance.ValidateDate("due_date", *req.DueDate, false); err != nil {
			return err
		}
	}
	if req.Status != nil && !req.Status.IsValid() {
		return fmt.Errorf("unknown status %q: %w", *req.Status, domain.ErrValidation)
	}
	rate := 0.0
	if req.TaxRate != nil {
		rate = *req.TaxRate
	}
	if req.LineItems != nil || req.TaxRate != nil {
		return validateLines(req.LineItems, rate)
	}
	return nil
}

func validateLines(lines []LineInput, taxRate float64) error {
	if taxRate < 0 || taxRate > 100 {
		return fmt.Errorf("tax_rate must be a percentage in [0,100]: %w", domain.ErrValidation)
	}
	for i, l := range lines {
		if err := finance.ValidateLine(i, l.Description, l.Quantity, l.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

// Reprice rebuilds line totals and document totals. Existing line IDs are
// reassigned by the supplied generator.
func (inv *Invoice) Reprice(lines []LineInput, taxRate float64, newID func() string) {
	items := make([]LineItem, 0, len(lines))
	totals := make([]float64, 0, len(lines))
	for _, l := range lines {
		lt := finance.LineTotal(l.Quantity, l.UnitPrice)
		items = append(items, LineItem{
			ID:          newID(),
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Total:       lt,
		})
		totals = append(totals, lt)
	}
	t := finance.ComputeTotals(totals, taxRate)
	inv.LineItems = items
	inv.TaxRate = taxRate
	inv.Subtotal = t.Subtotal
	inv.Tax = t.Tax
	inv.Total = t.Total
	inv.AmountDue = finance.Round2(t.Total - inv.AmountPaid)
}

// ApplyPayment records a payment. The invoice becomes paid once nothing is due.
func (inv *Invoice) ApplyPayment(amount float64, now time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("payment amount must be positive: %w", domain.ErrValidation)
	}
	if inv.Status == StatusCancelled {
		return fmt.Errorf("invoice %s is cancelled: %w", inv.ID, domain.ErrInvalidTransition)
	}
	inv.AmountPaid = finance.Round2(inv.AmountPaid + amount)
	inv.AmountDue = finance.Round2(inv.Total - inv.AmountPaid)
	if inv.AmountDue <= 0 {
		at := now.UTC()
		inv.Status = StatusPaid
		inv.PaidAt = &at
	}
	return nil
}

// IsOverdue reports whether an open invoice is past its due date on the given day.
func (inv *Invoice) IsOverdue(today string) bool {
	return (inv.Status == StatusSent || inv.Status == StatusDraft) &&
		inv.DueDate < today && inv.AmountDue > 0
}

// Matches reports whether the invoice satisfies f, apart from the project scope.
func (f Filter) Matches(inv *Invoice) bool {
	if f.Status != "" && inv.Status != f.Status {
		return false
	}
	if f.ClientID != "" && inv.ClientID != f.ClientID {
		return false
	}
	if f.StartDate != "" && inv.IssueDate < f.StartDate {
		return false
	}
	if f.EndDate != "" && inv.IssueDate > f.EndDate {
		return false
	}
	if f.Search != "" && !containsFold(inv.InvoiceNumber, f.Search) && !containsFold(inv.ClientName, f.Search) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
