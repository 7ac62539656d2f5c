package http

import (
	"context"
	"net/http"
	"time"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/middleware"
	"github.com/GustheTrader/Build-flow/internal/service"
)

// DefaultBodyLimit caps JSON request bodies.
const DefaultBodyLimit int64 = 1 << 20

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Dispatcher     *service.Dispatcher
	Workflows      *service.WorkflowRunner
	Reviews        *service.ReviewQueue
	Projects       *service.ProjectService
	Tasks          *service.TaskService
	Invoices       *service.InvoiceService
	PurchaseOrders *service.PurchaseOrderService
	Vendors        *service.VendorService
	Payments       *service.PaymentService
	Dashboard      *service.DashboardService
	Auth           *service.AuthService
	Store          Pinger
	Version        string
	BodyLimit      int64 // 0 uses DefaultBodyLimit
}

func (h *Handlers) limit() int64 {
	if h.BodyLimit > 0 {
		return h.BodyLimit
	}
	return DefaultBodyLimit
}

// Health reports liveness and store reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "version": h.Version, "store": "ok"}
	status := http.StatusOK
	if h.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			resp["status"] = "degraded"
			resp["store"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

// GetDashboard returns the portfolio overview.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Dashboard.Get(r.Context())
	if err != nil {
		writeDomainError(w, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Me returns the authenticated principal.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "authorization required", domain.CodeUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Logout revokes the bearer token used for the request. API key and
// unauthenticated callers have nothing to revoke.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusBadRequest, "only bearer tokens can be revoked", domain.CodeValidation)
		return
	}
	if err := h.Auth.RevokeToken(r.Context(), claims); err != nil {
		writeDomainError(w, err, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
