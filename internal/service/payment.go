package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/payment"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
	"github.com/GustheTrader/Build-flow/internal/port/messagequeue"
)

const (
	keyPayment       = "payment:"
	keyPaymentsAll   = "payments:all"
	keyPaymentIntent = "payment:intent:"
)

func paymentKey(id string) string { return keyPayment + id }

// PaymentService records payments and applies gateway status events.
type PaymentService struct {
	store    kvstore.Store
	invoices *InvoiceService
	events   *EventPublisher
	now      func() time.Time
	newID    func() string
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(store kvstore.Store, invoices *InvoiceService) *PaymentService {
	return &PaymentService{store: store, invoices: invoices, now: time.Now, newID: uuid.NewString}
}

// SetEvents wires event publication.
func (s *PaymentService) SetEvents(p *EventPublisher) { s.events = p }

// Create records a payment. A payment carrying a gateway intent id starts
// pending and settles through the webhook; any other payment is recorded as
// completed and applied to its invoice straight away.
func (s *PaymentService) Create(ctx context.Context, req *payment.CreateRequest, createdBy string) (*payment.Payment, error) {
	if err := payment.ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	if req.InvoiceID != "" {
		if _, err := s.invoices.Get(ctx, req.InvoiceID); err != nil {
			return nil, err
		}
	}
	if req.GatewayIntentID != "" {
		_, err := s.store.Get(ctx, keyPaymentIntent+req.GatewayIntentID)
		switch {
		case err == nil:
			return nil, fmt.Errorf("gateway intent %s already recorded: %w", req.GatewayIntentID, domain.ErrConflict)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	now := s.now().UTC()
	p := &payment.Payment{
		ID:              s.newID(),
		ProjectID:       req.ProjectID,
		InvoiceID:       req.InvoiceID,
		Amount:          req.Amount,
		Currency:        strings.ToUpper(req.Currency),
		PaymentDate:     req.PaymentDate,
		Method:          req.Method,
		Status:          payment.StatusCompleted,
		ReferenceNumber: req.ReferenceNumber,
		GatewayIntentID: req.GatewayIntentID,
		Notes:           req.Notes,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.GatewayIntentID != "" {
		p.Status = payment.StatusPending
	}

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	if err := s.store.SAdd(ctx, keyPaymentsAll, p.ID); err != nil {
		return nil, err
	}
	if p.GatewayIntentID != "" {
		if err := s.store.Set(ctx, keyPaymentIntent+p.GatewayIntentID, []byte(p.ID), 0); err != nil {
			return nil, err
		}
	}
	if p.Status == payment.StatusCompleted && p.InvoiceID != "" {
		if _, err := s.invoices.MarkPaid(ctx, p.InvoiceID, p.Amount); err != nil {
			return nil, err
		}
	}
	s.publish(ctx, p)
	return p, nil
}

// Get returns a payment by ID.
func (s *PaymentService) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := getJSON[payment.Payment](ctx, s.store, paymentKey(id))
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", id, err)
	}
	return p, nil
}

// GetByIntent returns the payment recorded for a gateway intent.
func (s *PaymentService) GetByIntent(ctx context.Context, intentID string) (*payment.Payment, error) {
	raw, err := s.store.Get(ctx, keyPaymentIntent+intentID)
	if err != nil {
		return nil, fmt.Errorf("payment intent %s: %w", intentID, err)
	}
	return s.Get(ctx, string(raw))
}

// List returns payments matching f, newest first.
func (s *PaymentService) List(ctx context.Context, f payment.Filter) ([]payment.Payment, error) {
	ids, err := s.store.SMembers(ctx, keyPaymentsAll)
	if err != nil {
		return nil, err
	}
	all, err := loadAll[payment.Payment](ctx, s.store, ids, paymentKey)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(p payment.Payment) bool { return !f.Matches(&p) })
	slices.SortFunc(out, func(a, b payment.Payment) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// HandleGatewayEvent applies a gateway status event to the payment with the
// matching intent id and reports whether anything changed. Untracked event
// types and unknown intents are ignored, as are events for settled payments
// other than a refund of a completed one. A completed payment is applied to
// its linked invoice.
func (s *PaymentService) HandleGatewayEvent(ctx context.Context, ev payment.GatewayEvent) (bool, error) {
	status, ok := payment.StatusForEvent(ev.Type)
	if !ok {
		slog.DebugContext(ctx, "ignoring gateway event", "type", ev.Type, "event_id", ev.ID)
		return false, nil
	}
	if ev.IntentID == "" {
		return false, fmt.Errorf("gateway event %s has no intent id: %w", ev.ID, domain.ErrValidation)
	}
	p, err := s.GetByIntent(ctx, ev.IntentID)
	if errors.Is(err, domain.ErrNotFound) {
		slog.WarnContext(ctx, "gateway event for unknown payment", "intent_id", ev.IntentID, "type", ev.Type)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	refund := p.Status == payment.StatusCompleted && status == payment.StatusRefunded
	if p.Status == status || (p.Status.IsTerminal() && !refund) {
		return false, nil
	}

	// Settle the invoice first; a failed settlement must leave the payment
	// open for the gateway's retry.
	if status == payment.StatusCompleted && p.InvoiceID != "" {
		if _, err := s.invoices.MarkPaid(ctx, p.InvoiceID, p.Amount); err != nil {
			return false, fmt.Errorf("apply payment %s to invoice %s: %w", p.ID, p.InvoiceID, err)
		}
	}
	p.Status = status
	p.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, p); err != nil {
		return false, err
	}
	slog.InfoContext(ctx, "payment status updated", "payment_id", p.ID, "status", status, "event", ev.Type)
	s.publish(ctx, p)
	return true, nil
}

func (s *PaymentService) publish(ctx context.Context, p *payment.Payment) {
	s.events.Publish(ctx, messagequeue.SubjectPaymentUpdated, messagequeue.PaymentUpdatedPayload{
		PaymentID: p.ID,
		InvoiceID: p.InvoiceID,
		Status:    string(p.Status),
		Amount:    p.Amount,
	})
}

func (s *PaymentService) save(ctx context.Context, p *payment.Payment) error {
	return putJSON(ctx, s.store, paymentKey(p.ID), p, 0)
}
