// Package purchaseorder defines vendor purchase orders and item receipt.
package purchaseorder

import (
	"fmt"
	"strings"
	"time"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/finance"
)

// Status is the canonical purchase order status set.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusApproved  Status = "approved"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every purchase order status in display order.
var Statuses = []Status{StatusDraft, StatusSent, StatusApproved, StatusReceived, StatusCancelled}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Address is a delivery address.
type Address struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// LineItem is one ordered line and how much of it has arrived.
type LineItem struct {
	ID               string  `json:"id"`
	Description      string  `json:"description"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	Total            float64 `json:"total"`
	ReceivedQuantity float64 `json:"received_quantity"`
}

// LineInput is a line item as submitted by a client.
type LineInput struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// PurchaseOrder is an order placed with a vendor for a project.
type PurchaseOrder struct {
	ID                   string     `json:"id"`
	ProjectID            string     `json:"project_id"`
	PONumber             string     `json:"po_number"`
	VendorID             string     `json:"vendor_id"`
	VendorName           string     `json:"vendor_name"`
	VendorContact        string     `json:"vendor_contact,omitempty"`
	OrderDate            string     `json:"order_date"`
	ExpectedDeliveryDate string     `json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   string     `json:"actual_delivery_date,omitempty"`
	Status               Status     `json:"status"`
	LineItems            []LineItem `json:"line_items"`
	Subtotal             float64    `json:"subtotal"`
	Tax                  float64    `json:"tax"`
	TaxRate              float64    `json:"tax_rate"`
	Total                float64    `json:"total"`
	ShippingAddress      *Address   `json:"shipping_address,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	CreatedBy            string     `json:"created_by"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a purchase order.
type CreateRequest struct {
	ProjectID            string      `json:"project_id"`
	VendorID             string      `json:"vendor_id"`
	VendorName           string      `json:"vendor_name"`
	VendorContact        string      `json:"vendor_contact"`
	OrderDate            string      `json:"order_date"`
	ExpectedDeliveryDate string      `json:"expected_delivery_date"`
	LineItems            []LineInput `json:"line_items"`
	TaxRate              float64     `json:"tax_rate"`
	ShippingAddress      *Address    `json:"shipping_address"`
	Notes                string      `json:"notes"`
}

// UpdateRequest holds optional fields for a partial update.
type UpdateRequest struct {
	OrderDate            *string     `json:"order_date,omitempty"`
	ExpectedDeliveryDate *string     `json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *string     `json:"actual_delivery_date,omitempty"`
	LineItems            []LineInput `json:"line_items,omitempty"`
	TaxRate              *float64    `json:"tax_rate,omitempty"`
	ShippingAddress      *Address    `json:"shipping_address,omitempty"`
	Notes                *string     `json:"notes,omitempty"`
	Status               *Status     `json:"status,omitempty"`
}

// Receipt records quantities arriving for one line.
type Receipt struct {
	LineItemID       string  `json:"line_item_id"`
	ReceivedQuantity float64 `json:"received_quantity"`
}

// Filter narrows purchase order listings. Zero fields match everything.
type Filter struct {
	ProjectID string
	Status    Status
	VendorID  string
	StartDate string
	EndDate   string
	Search    string
}

// Stats summarizes a set of purchase orders.
type Stats struct {
	TotalOrders       int            `json:"total_orders"`
	TotalAmount       float64        `json:"total_amount"`
	ByStatus          map[Status]int `json:"by_status"`
	PendingDeliveries int            `json:"pending_deliveries"`
}

// ValidateCreateRequest checks required fields, amounts and dates.
func ValidateCreateRequest(req *CreateRequest) error {
	if req.ProjectID == "" {
		return fmt.Errorf("project_id is required: %w", domain.ErrValidation)
	}
	if req.VendorID == "" {
		return fmt.Errorf("vendor_id is required: %w", domain.ErrValidation)
	}
	if err := finance.ValidateDate("order_date", req.OrderDate, false); err != nil {
		return err
	}
	if err := finance.ValidateDate("expected_delivery_date", req.ExpectedDeliveryDate, true); err != nil {
		return err
	}
	if len(req.LineItems) == 0 {
		return fmt.Errorf("at least one line item is required: %w", domain.ErrValidation)
	}
	return validateLines(req.LineItems, req.TaxRate)
}

// ValidateUpdateRequest checks the fields present in a partial update.
func ValidateUpdateRequest(req *UpdateRequest) error {
	for field, v := range map[string]*string{
		"order_date":             req.OrderDate,
		"expected_delivery_date": req.ExpectedDeliveryDate,
		"actual_delivery_date":   req.ActualDeliveryDate,
	} {
		if v != nil {
			if err := finance.ValidateDate(field, *v, true); err != nil {
				return err
			}
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

// Reprice rebuilds line items and totals. Received quantities reset.
func (po *PurchaseOrder) Reprice(lines []LineInput, taxRate float64, newID func() string) {
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
	po.LineItems = items
	po.TaxRate = taxRate
	po.Subtotal = t.Subtotal
	po.Tax = t.Tax
	po.Total = t.Total
}

// Transition moves the order between statuses along the allowed edges:
// draft -> sent -> approved -> received, and any non-received state -> cancelled.
func (po *PurchaseOrder) Transition(to Status) error {
	allowed := map[Status][]Status{
		StatusDraft:    {StatusSent, StatusApproved, StatusCancelled},
		StatusSent:     {StatusApproved, StatusCancelled},
		StatusApproved: {StatusReceived, StatusCancelled},
	}
	for _, s := range allowed[po.Status] {
		if s == to {
			po.Status = to
			return nil
		}
	}
	return fmt.Errorf("purchase order %s: %s -> %s: %w", po.ID, po.Status, to, domain.ErrInvalidTransition)
}

// Receive accumulates receipts. The order becomes received once every line is
// fully received, otherwise it stays approved.
func (po *PurchaseOrder) Receive(receipts []Receipt, today string) error {
	if po.Status != StatusApproved && po.Status != StatusSent {
		return fmt.Errorf("purchase order %s is %s: %w", po.ID, po.Status, domain.ErrInvalidTransition)
	}
	idx := make(map[string]int, len(po.LineItems))
	for i := range po.LineItems {
		idx[po.LineItems[i].ID] = i
	}
	for _, r := range receipts {
		if _, ok := idx[r.LineItemID]; !ok {
			return fmt.Errorf("line item %s: %w", r.LineItemID, domain.ErrNotFound)
		}
		if r.ReceivedQuantity <= 0 {
			return fmt.Errorf("received quantity must be positive: %w", domain.ErrValidation)
		}
	}
	for _, r := range receipts {
		li := &po.LineItems[idx[r.LineItemID]]
		li.ReceivedQuantity += r.ReceivedQuantity
	}

	all := true
	for i := range po.LineItems {
		if po.LineItems[i].ReceivedQuantity < po.LineItems[i].Quantity {
			all = false
			break
		}
	}
	if all {
		po.Status = StatusReceived
		po.ActualDeliveryDate = today
	} else {
		po.Status = StatusApproved
	}
	return nil
}

// Matches reports whether the order satisfies f, apart from the project scope.
func (f Filter) Matches(po *PurchaseOrder) bool {
	if f.Status != "" && po.Status != f.Status {
		return false
	}
	if f.VendorID != "" && po.VendorID != f.VendorID {
		return false
	}
	if f.StartDate != "" && po.OrderDate < f.StartDate {
		return false
	}
	if f.EndDate != "" && po.OrderDate > f.EndDate {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(po.PONumber), q) && !strings.Contains(strings.ToLower(po.VendorName), q) {
			return false
		}
	}
	return true
}
