package http

import (
	"context"
	"net/http"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/invoice"
	"github.com/GustheTrader/Build-flow/internal/domain/payment"
	"github.com/GustheTrader/Build-flow/internal/domain/purchaseorder"
	"github.com/GustheTrader/Build-flow/internal/domain/vendor"
)

// PayRequest is the body of POST /invoices/{id}/pay.
type PayRequest struct {
	Amount float64 `json:"amount"`
}

// ReceiveRequest is the body of POST /purchase-orders/{id}/receive.
type ReceiveRequest struct {
	Items []purchaseorder.Receipt `json:"items"`
}

// WebhookAck acknowledges a gateway event.
type WebhookAck struct {
	Received bool `json:"received"`
	Changed  bool `json:"changed"`
}

// --- Invoices ---

// ListInvoices handles GET /api/v1/invoices.
func (h *Handlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := invoice.Filter{
		ProjectID: q.Get("project_id"),
		Status:    invoice.Status(q.Get("status")),
		ClientID:  q.Get("client_id"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Search:    q.Get("q"),
	}
	if f.Status != "" && !f.Status.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid status", domain.CodeValidation)
		return
	}
	handleList(func(ctx context.Context) ([]invoice.Invoice, error) {
		return h.Invoices.List(ctx, f)
	})(w, r)
}

// GetInvoice handles GET /api/v1/invoices/{id}.
func (h *Handlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Invoices.Get, "invoice not found")(w, r)
}

// CreateInvoice handles POST /api/v1/invoices.
func (h *Handlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	handleCreate(h.limit(), h.Invoices.Create)(w, r)
}

// UpdateInvoice handles PUT /api/v1/invoices/{id}.
func (h *Handlers) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.limit(), h.Invoices.Update, "invoice not found")(w, r)
}

// DeleteInvoice handles DELETE /api/v1/invoices/{id}.
func (h *Handlers) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.Invoices.Delete, "invoice not found")(w, r)
}

// SendInvoice handles POST /api/v1/invoices/{id}/send.
func (h *Handlers) SendInvoice(w http.ResponseWriter, r *http.Request) {
	handleAction(h.Invoices.Send, "invoice not found")(w, r)
}

// PayInvoice handles POST /api/v1/invoices/{id}/pay.
func (h *Handlers) PayInvoice(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[PayRequest](w, r, h.limit())
	if !ok {
		return
	}
	inv, err := h.Invoices.MarkPaid(r.Context(), urlParam(r, "id"), req.Amount)
	if err != nil {
		writeDomainError(w, err, "invoice not found")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// InvoiceStats handles GET /api/v1/invoices/stats?project_id=.
func (h *Handlers) InvoiceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Invoices.Stats(r.Context(), r.URL.Query().Get("project_id"))
	if err != nil {
		writeDomainError(w, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// MarkOverdueInvoices handles POST /api/v1/invoices/overdue.
func (h *Handlers) MarkOverdueInvoices(w http.ResponseWriter, r *http.Request) {
	n, err := h.Invoices.UpdateOverdue(r.Context())
	if err != nil {
		writeDomainError(w, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// --- Purchase orders ---

// ListPurchaseOrders handles GET /api/v1/purchase-orders.
func (h *Handlers) ListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := purchaseorder.Filter{
		ProjectID: q.Get("project_id"),
		Status:    purchaseorder.Status(q.Get("status")),
		VendorID:  q.Get("vendor_id"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Search:    q.Get("q"),
	}
	if f.Status != "" && !f.Status.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid status", domain.CodeValidation)
		return
	}
	handleList(func(ctx context.Context) ([]purchaseorder.PurchaseOrder, error) {
		return h.PurchaseOrders.List(ctx, f)
	})(w, r)
}

// GetPurchaseOrder handles GET /api/v1/purchase-orders/{id}.
func (h *Handlers) GetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	handleGet(h.PurchaseOrders.Get, "purchase order not found")(w, r)
}

// CreatePurchaseOrder handles POST /api/v1/purchase-orders.
func (h *Handlers) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	handleCreate(h.limit(), h.PurchaseOrders.Create)(w, r)
}

// UpdatePurchaseOrder handles PUT /api/v1/purchase-orders/{id}.
func (h *Handlers) UpdatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.limit(), h.PurchaseOrders.Update, "purchase order not found")(w, r)
}

// DeletePurchaseOrder handles DELETE /api/v1/purchase-orders/{id}.
func (h *Handlers) DeletePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.PurchaseOrders.Delete, "purchase order not found")(w, r)
}

// ApprovePurchaseOrder handles POST /api/v1/purchase-orders/{id}/approve.
func (h *Handlers) ApprovePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	handleAction(h.PurchaseOrders.Approve, "purchase order not found")(w, r)
}

// SendPurchaseOrder handles POST /api/v1/purchase-orders/{id}/send.
func (h *Handlers) SendPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	handleAction(h.PurchaseOrders.Send, "purchase order not found")(w, r)
}

// ReceivePurchaseOrder handles POST /api/v1/purchase-orders/{id}/receive.
func (h *Handlers) ReceivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[ReceiveRequest](w, r, h.limit())
	if !ok {
		return
	}
	po, err := h.PurchaseOrders.ReceiveItems(r.Context(), urlParam(r, "id"), req.Items)
	if err != nil {
		writeDomainError(w, err, "purchase order not found")
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// PurchaseOrderStats handles GET /api/v1/purchase-orders/stats?project_id=.
func (h *Handlers) PurchaseOrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.PurchaseOrders.Stats(r.Context(), r.URL.Query().Get("project_id"))
	if err != nil {
		writeDomainError(w, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- Vendors ---

// ListVendors handles GET /api/v1/vendors?category=&q=.
func (h *Handlers) ListVendors(w http.ResponseWriter, r *http.Request) {
	f := vendor.Filter{Category: r.URL.Query().Get("category"), Search: r.URL.Query().Get("q")}
	handleList(func(ctx context.Context) ([]vendor.Vendor, error) {
		return h.Vendors.List(ctx, f)
	})(w, r)
}

// GetVendor handles GET /api/v1/vendors/{id}.
func (h *Handlers) GetVendor(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Vendors.Get, "vendor not found")(w, r)
}

// CreateVendor handles POST /api/v1/vendors.
func (h *Handlers) CreateVendor(w http.ResponseWriter, r *http.Request) {
	handleCreate(h.limit(), func(ctx context.Context, req *vendor.CreateRequest, _ string) (*vendor.Vendor, error) {
		return h.Vendors.Create(ctx, req)
	})(w, r)
}

// UpdateVendor handles PUT /api/v1/vendors/{id}.
func (h *Handlers) UpdateVendor(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.limit(), h.Vendors.Update, "vendor not found")(w, r)
}

// DeleteVendor handles DELETE /api/v1/vendors/{id}.
func (h *Handlers) DeleteVendor(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.Vendors.Delete, "vendor not found")(w, r)
}

// VendorCategories handles GET /api/v1/vendors/categories.
func (h *Handlers) VendorCategories(w http.ResponseWriter, r *http.Request) {
	handleList(h.Vendors.Categories)(w, r)
}

// --- Payments ---

// ListPayments handles GET /api/v1/payments.
func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := payment.Filter{
		ProjectID: q.Get("project_id"),
		InvoiceID: q.Get("invoice_id"),
		Method:    payment.Method(q.Get("method")),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}
	if f.Method != "" && !f.Method.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid payment method", domain.CodeValidation)
		return
	}
	handleList(func(ctx context.Context) ([]payment.Payment, error) {
		return h.Payments.List(ctx, f)
	})(w, r)
}

// GetPayment handles GET /api/v1/payments/{id}.
func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Payments.Get, "payment not found")(w, r)
}

// CreatePayment handles POST /api/v1/payments.
func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	handleCreate(h.limit(), h.Payments.Create)(w, r)
}

// PaymentWebhook handles POST /api/v1/webhooks/payments. The signature is
// verified by middleware before this handler runs.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ev, ok := readJSON[payment.GatewayEvent](w, r, h.limit())
	if !ok {
		return
	}
	changed, err := h.Payments.HandleGatewayEvent(r.Context(), ev)
	if err != nil {
		writeDomainError(w, err, "payment not found")
		return
	}
	writeJSON(w, http.StatusOK, WebhookAck{Received: true, Changed: changed})
}
