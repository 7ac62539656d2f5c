package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/finance"
	"github.com/GustheTrader/Build-flow/internal/domain/invoice"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

const (
	keyInvoice         = "invoice:"
	keyInvoicesAll     = "invoices:all"
	keyProjectInvoices = "project:invoices:"
	keyInvoiceCounter  = "invoice:counter"
)

func invoiceKey(id string) string                { return keyInvoice + id }
func projectInvoicesKey(projectID string) string { return keyProjectInvoices + projectID }

// InvoiceService manages client invoices.
type InvoiceService struct {
	store kvstore.Store
	now   func() time.Time
	newID func() string
}

// NewInvoiceService creates an InvoiceService.
func NewInvoiceService(store kvstore.Store) *InvoiceService {
	return &InvoiceService{store: store, now: time.Now, newID: uuid.NewString}
}

// Create numbers and prices a new draft invoice.
func (s *InvoiceService) Create(ctx context.Context, req *invoice.CreateRequest, createdBy string) (*invoice.Invoice, error) {
	if err := invoice.ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	number, err := nextNumber(ctx, s.store, keyInvoiceCounter, "INV", now)
	if err != nil {
		return nil, err
	}
	inv := &invoice.Invoice{
		ID:            s.newID(),
		ProjectID:     req.ProjectID,
		InvoiceNumber: number,
		ClientID:      req.ClientID,
		ClientName:    req.ClientName,
		IssueDate:     req.IssueDate,
		DueDate:       req.DueDate,
		Status:        invoice.StatusDraft,
		Notes:         req.Notes,
		PaymentTerms:  req.PaymentTerms,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	inv.Reprice(req.LineItems, req.TaxRate, s.newID)

	if err := s.save(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.store.SAdd(ctx, keyInvoicesAll, inv.ID); err != nil {
		return nil, err
	}
	if err := s.store.SAdd(ctx, projectInvoicesKey(inv.ProjectID), inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

// Get returns an invoice by ID.
func (s *InvoiceService) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := getJSON[invoice.Invoice](ctx, s.store, invoiceKey(id))
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", id, err)
	}
	return inv, nil
}

// List returns invoices matching f, newest first.
func (s *InvoiceService) List(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, error) {
	setKey := keyInvoicesAll
	if f.ProjectID != "" {
		setKey = projectInvoicesKey(f.ProjectID)
	}
	ids, err := s.store.SMembers(ctx, setKey)
	if err != nil {
		return nil, err
	}
	all, err := loadAll[invoice.Invoice](ctx, s.store, ids, invoiceKey)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(inv invoice.Invoice) bool { return !f.Matches(&inv) })
	slices.SortFunc(out, func(a, b invoice.Invoice) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// Update applies a partial update. Changing lines or the tax rate reprices
// the invoice; paid amounts are kept.
func (s *InvoiceService) Update(ctx context.Context, id string, req invoice.UpdateRequest) (*invoice.Invoice, error) {
	if err := invoice.ValidateUpdateRequest(&req); err != nil {
		return nil, err
	}
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.IssueDate != nil {
		inv.IssueDate = *req.IssueDate
	}
	if req.DueDate != nil {
		inv.DueDate = *req.DueDate
	}
	if inv.DueDate < inv.IssueDate {
		return nil, fmt.Errorf("due_date precedes issue_date: %w", domain.ErrValidation)
	}
	if req.Notes != nil {
		inv.Notes = *req.Notes
	}
	if req.PaymentTerms != nil {
		inv.PaymentTerms = *req.PaymentTerms
	}
	if req.Status != nil {
		inv.Status = *req.Status
	}
	if req.LineItems != nil || req.TaxRate != nil {
		lines := req.LineItems
		if lines == nil {
			lines = linesOf(inv)
		}
		rate := inv.TaxRate
		if req.TaxRate != nil {
			rate = *req.TaxRate
		}
		inv.Reprice(lines, rate, s.newID)
	}
	inv.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func linesOf(inv *invoice.Invoice) []invoice.LineInput {
	out := make([]invoice.LineInput, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		out = append(out, invoice.LineInput{Description: li.Description, Quantity: li.Quantity, UnitPrice: li.UnitPrice})
	}
	return out
}

// Delete removes an invoice and its index entries.
func (s *InvoiceService) Delete(ctx context.Context, id string) error {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, invoiceKey(id)); err != nil {
		return err
	}
	if err := s.store.SRem(ctx, keyInvoicesAll, id); err != nil {
		return err
	}
	return s.store.SRem(ctx, projectInvoicesKey(inv.ProjectID), id)
}

// Send marks a draft invoice as sent to the client.
func (s *InvoiceService) Send(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != invoice.StatusDraft {
		return nil, fmt.Errorf("invoice %s is %s, not draft: %w", id, inv.Status, domain.ErrInvalidTransition)
	}
	inv.Status = invoice.StatusSent
	inv.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// MarkPaid records a payment against the invoice. It becomes paid once the
// amount due reaches zero.
func (s *InvoiceService) MarkPaid(ctx context.Context, id string, amount float64) (*invoice.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := inv.ApplyPayment(amount, now); err != nil {
		return nil, err
	}
	inv.UpdatedAt = now.UTC()
	if err := s.save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// UpdateOverdue flags every open invoice past its due date as overdue and
// returns how many changed.
func (s *InvoiceService) UpdateOverdue(ctx context.Context) (int, error) {
	all, err := s.List(ctx, invoice.Filter{})
	if err != nil {
		return 0, err
	}
	now := s.now()
	day := today(now)
	n := 0
	for i := range all {
		inv := &all[i]
		if !inv.IsOverdue(day) {
			continue
		}
		inv.Status = invoice.StatusOverdue
		inv.UpdatedAt = now.UTC()
		if err := s.save(ctx, inv); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Stats summarizes invoices, optionally for one project.
func (s *InvoiceService) Stats(ctx context.Context, projectID string) (*invoice.Stats, error) {
	all, err := s.List(ctx, invoice.Filter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	st := &invoice.Stats{TotalInvoices: len(all), ByStatus: make(map[invoice.Status]int, len(invoice.Statuses))}
	for _, status := range invoice.Statuses {
		st.ByStatus[status] = 0
	}
	for i := range all {
		inv := &all[i]
		st.TotalAmount += inv.Total
		st.TotalPaid += inv.AmountPaid
		st.TotalOutstanding += inv.AmountDue
		st.ByStatus[inv.Status]++
		if inv.Status == invoice.StatusOverdue {
			st.OverdueAmount += inv.AmountDue
		}
	}
	st.TotalAmount = finance.Round2(st.TotalAmount)
	st.TotalPaid = finance.Round2(st.TotalPaid)
	st.TotalOutstanding = finance.Round2(st.TotalOutstanding)
	st.OverdueAmount = finance.Round2(st.OverdueAmount)
	return st, nil
}

func (s *InvoiceService) save(ctx context.Context, inv *invoice.Invoice) error {
	return putJSON(ctx, s.store, invoiceKey(inv.ID), inv, 0)
}
