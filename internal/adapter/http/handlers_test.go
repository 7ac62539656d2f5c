package http_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	cfhttp "github.com/GustheTrader/Build-flow/internal/adapter/http"
	"github.com/GustheTrader/Build-flow/internal/adapter/memkv"
	"github.com/GustheTrader/Build-flow/internal/agents"
	"github.com/GustheTrader/Build-flow/internal/config"
	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/invoice"
	"github.com/GustheTrader/Build-flow/internal/domain/payment"
	"github.com/GustheTrader/Build-flow/internal/domain/project"
	"github.com/GustheTrader/Build-flow/internal/domain/purchaseorder"
	"github.com/GustheTrader/Build-flow/internal/domain/review"
	"github.com/GustheTrader/Build-flow/internal/domain/task"
	"github.com/GustheTrader/Build-flow/internal/domain/user"
	"github.com/GustheTrader/Build-flow/internal/domain/vendor"
	"github.com/GustheTrader/Build-flow/internal/domain/workflow"
	"github.com/GustheTrader/Build-flow/internal/middleware"
	"github.com/GustheTrader/Build-flow/internal/service"
)

const testWebhookSecret = "whsec_test"

type testEnv struct {
	router   chi.Router
	handlers *cfhttp.Handlers
	auth     *service.AuthService
}

type testOptions struct {
	authEnabled bool
	bodyLimit   int64
	store       cfhttp.Pinger
}

// newTestRouter wires every service over an in-memory store. With auth
// disabled each request runs as the local admin.
func newTestRouter(t *testing.T, opts testOptions) *testEnv {
	t.Helper()
	store := memkv.New()

	dispatcher := service.NewDispatcher(store, agent.Thresholds{Low: 0.95, High: 0.80}, time.Hour)
	dispatcher.RegisterAll(agents.All(agents.DefaultEnv()))
	reviews := service.NewReviewQueue(store, 0)
	dispatcher.SetEscalator(reviews)
	runner := service.NewWorkflowRunner(dispatcher)
	projects := service.NewProjectService(store, dispatcher, runner)
	invoices := service.NewInvoiceService(store)
	vendors := service.NewVendorService(store)
	orders := service.NewPurchaseOrderService(store, vendors)
	authSvc := service.NewAuthService(store, config.Auth{
		Enabled:   opts.authEnabled,
		JWTSecret: "test-secret-at-least-32-bytes-long!!",
		JWTIssuer: "buildflow-test",
		TokenTTL:  time.Hour,
	})

	h := &cfhttp.Handlers{
		Dispatcher:     dispatcher,
		Workflows:      runner,
		Reviews:        reviews,
		Projects:       projects,
		Tasks:          service.NewTaskService(store, projects),
		Invoices:       invoices,
		PurchaseOrders: orders,
		Vendors:        vendors,
		Payments:       service.NewPaymentService(store, invoices),
		Dashboard:      service.NewDashboardService(projects, invoices, orders, reviews, dispatcher),
		Auth:           authSvc,
		Store:          store,
		Version:        "test",
		BodyLimit:      opts.bodyLimit,
	}
	if opts.store != nil {
		h.Store = opts.store
	}

	r := chi.NewRouter()
	r.Use(middleware.Auth(authSvc, opts.authEnabled))
	cfhttp.MountRoutes(r, h, config.Webhook{PaymentSecret: testWebhookSecret})
	return &testEnv{router: r, handlers: h, auth: authSvc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v (body %q)", v, err, w.Body.String())
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func expectErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, w, status)
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != code {
		t.Fatalf("code = %q, want %q (error %q)", body.Code, code, body.Error)
	}
}

// --- Health ---

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	env := newTestRouter(t, testOptions{})
	for _, path := range []string{"/health", "/api/v1/health"} {
		w := env.do(t, "GET", path, nil)
		expectStatus(t, w, http.StatusOK)
		body := decode[map[string]string](t, w)
		if body["status"] != "ok" || body["version"] != "test" {
			t.Fatalf("%s: unexpected body %v", path, body)
		}
	}
}

func TestHealthDegraded(t *testing.T) {
	env := newTestRouter(t, testOptions{store: downPinger{}})
	w := env.do(t, "GET", "/api/v1/health", nil)
	expectStatus(t, w, http.StatusServiceUnavailable)
	if body := decode[map[string]string](t, w); body["store"] != "unreachable" {
		t.Fatalf("store = %q", body["store"])
	}
}

// --- Agents ---

func TestExecuteAgent(t *testing.T) {
	env := newTestRouter(t, testOptions{})
	w := env.do(t, "POST", "/api/v1/ai-agents/execute", cfhttp.ExecuteRequest{
		AgentType: "validation",
		Input:     agent.Input{"type": "invoice", "data": map[string]any{"amount": 10.0, "clientId": "c"}},
	})
	expectStatus(t, w, http.StatusOK)
	rec := decode[agent.Recommendation](t, w)
	if rec.AgentKind != agent.KindValidation || rec.Confidence != 0.88 || rec.HITLRequired {
		t.Fatalf("unexpected recommendation %+v", rec)
	}

	w = env.do(t, "GET", "/api/v1/ai-agents/metrics", nil)
	expectStatus(t, w, http.StatusOK)
	metrics := decode[map[agent.Kind]agent.MetricsRecord](t, w)
	if metrics[agent.KindValidation].CallCount != 1 {
		t.Fatalf("call count = %d, want 1", metrics[agent.KindValidation].CallCount)
	}
}

func TestExecuteAgentErrors(t *testing.T) {
	env := newTestRouter(t, testOptions{})
	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed body", `{"agentType":`, http.StatusBadRequest, "validation_error"},
		{"missing agent type", cfhttp.ExecuteRequest{}, http.StatusBadRequest, "validation_error"},
		{"unknown agent", cfhttp.ExecuteRequest{AgentType: "oracle"}, http.StatusBadRequest, "unknown_agent_kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/ai-agents/execute", tt.body)
			expectErrorCode(t, w, tt.status, tt.code)
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	env := newTestRouter(t, testOptions{bodyLimit: 16})
	w := env.do(t, "POST", "/api/v1/ai-agents/execute", cfhttp.ExecuteRequest{
		AgentType: "validation",
		Input:     agent.Input{"type": "invoice"},
	})
	expectErrorCode(t, w, http.StatusRequestEntityTooLarge, "validation_error")
}

func TestOrchestrate(t *testing.T) {
	env := newTestRouter(t, testOptions{})
	w := env.do(t, "POST", "/api/v1/ai-agents/orchestrate", cfhttp.OrchestrateRequest{
		Workflow: "project_planning",
		Context:  map[string]any{"budget": 50000.0},
	})
	expectStatus(t, w, http.StatusOK)
	res := decode[workflow.Result](t, w)
	if res.WorkflowName != "project_planning" || len(res.StepResults) != 5 {
		t.Fatalf("unexpected result: %s with %d steps", res.WorkflowName, len(res.StepResults))
	}

	w = env.do(t, "POST", "/api/v1/ai-agents/orchestrate", cfhttp.OrchestrateRequest{})
	expectErrorCode(t, w, http.StatusBadRequest, "validation_error")
}

func TestReviewLifecycle(t *testing.T) {
	env := newTestRouter(t, testOptions{})

	// An unknown workflow yields a low-confidence orchestration result.
	w := env.do(t, "POST", "/api/v1/ai-agents/execute", cfhttp.ExecuteRequest{
		AgentType: "langgraph",
		Input:     agent.Input{"workflow": "unknown"},
		ProjectID: "p-1",
	})
	expectStatus(t, w, http.StatusOK)
	if rec := decode[agent.Recommendation](t, w); !rec.HITLRequired {
		t.Fatalf("expected review to be required, confidence %v", rec.Confidence)
	}

	w = env.do(t, "GET", "/api/v1/ai-agents/hitl?status=pending", nil)
	expectStatus(t, w, http.StatusOK)
	pending := decode[[]review.Request](t, w)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending review, got %d", len(pending))
	}
	id := pending[0].ID
	if pending[0].ProjectID != "p-1" {
		t.Errorf("project id = %q", pending[0].ProjectID)
	}

	w = env.do(t, "GET", "/api/v1/ai-agents/hitl/"+id, nil)
	expectStatus(t, w, http.StatusOK)

	w = env.do(t, "POST", "/api/v1/ai-agents/hitl/"+id+"/modify", cfhttp.ReviewDecisionRequest{
		Notes:   "use the standard plan",
		Payload: map[string]any{"workflow": "project_planning"},
	})
	expectStatus(t, w, http.StatusOK)
	got := decode[review.Request](t, w)
	if got.Status != review.StatusModified || got.ReviewerID != user.LocalAdmin.Subject {
		t.Fatalf("unexpected review %+v", got)
	}
	if got.ModifiedPayload["workflow"] != "project_planning" {
		t.Fatalf("modified payload = %v", got.ModifiedPayload)
	}

	w = env.do(t, "POST", "/api/v1/ai-agents/hitl/"+id+"/approve", cfhttp.ReviewDecisionRequest{})
	expectErrorCode(t, w, http.StatusConflict, "invalid_transition")

	w = env.do(t, "GET", "/api/v1/ai-agents/hitl?status=pending", nil)
	expectStatus(t, w, http.StatusOK)
	if left := decode[[]review.Request](t, w); len(left) != 0 {
		t.Fatalf("expected no pending reviews, got %d", len(left))
	}

	w = env.do(t, "GET", "/api/v1/ai-agents/health", nil)
	expectStatus(t, w, http.StatusOK)
	if h := decode[service.Health](t, w); h.PendingReviews != 0 || h.RecentExecutions != 1 {
		t.Fatalf("unexpected health %+v", h)
	}
}

func TestReviewDecisionWithoutBody(t *testing.T) {
	env := newTestRouter(t, testOptions{})
	escalate := func() string {
		t.Helper()
		w := env.do(t, "POST", "/api/v1/ai-agents/execute", cfhttp.ExecuteRequest{
			AgentType: "langgraph",
			Input:     agent.Input{"workflow": "unknown"},
		})
		expectStatus(t, w, http.StatusOK)
		w = env.do(t, "GET", "/api/v1/ai-agents/hitl?status=pending", nil)
		expectStatus(t, w, http.StatusOK)
		pending := decode[[]review.Request](t, w)
		if len(pending) == 0 {
			t.Fatal("expected a pending review")
		}
		return pending[0].ID
	}

	tests := []struct {
		action string
		want   review.Status
	}{
		{"approve", review.StatusApproved},
		{"reject", review.StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			id := escalate()
			w := env.do(t, "POST", "/api/v1/ai-agents/hitl/"+id+"/"+tt.action, nil)
			expectStatus(t, w, http.StatusOK)
			got := decode[review.Request](t, w)
			if got.Status != tt.want || got.ReviewerNotes != "" {
				t.Fatalf("unexpected review %+v", got)
			}
		})
	}

	id := escalate()
	w := env.do(t, "POST", "/api/v1/ai-agents/hitl/"+id+"/approve", "{not json")
	expectErrorCode(t, w, http.StatusBadRequest, "validation_error")
}

func TestReviewErrors(t *testing.T) {
	env := newTestRouter(t, testOptions{})
	tests := []struct {
		name, method, path string
		status             int
		code               string
	}{
		{"bad status filter", "GET", "/api/v1/ai-agents/hitl?status=bogus", http.StatusBadRequest, "validation_error"},
		{"get missing", "GET", "/api/v1/ai-agents/hitl/missing", http.StatusNotFound, "not_found"},
		{"reject missing", "POST", "/api/v1/ai-agents/hitl/missing/reject", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.method == "POST" {
				body = cfhttp.ReviewDecisionRequest{Notes: "no"}
			}
			w := env.do(t, tt.method, tt.path, body)
			expectErrorCode(t, w, tt.status, tt.code)
		})
	}
}

// --- Projects and tasks ---

func TestProjectCRUD(t *testing.T) {
	env := newTestRouter(t, testOptions{})

	w := env.do(t, "GET", "/api/v1/projects", nil)
	expectStatus(t, w, http.StatusOK)
	if list := decode[[]project.Project](t, w); len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	w = env.do(t, "POST", "/api/v1/projects", project.CreateRequest{Name: "Riverside Lofts", Budget: 250000})
	expectStatus(t, w, http.StatusCreated)
	p := decode[project.Project](t, w)
	if p.Status != project.StatusPlanning {
		t.Fatalf("status = %s, want planning", p.Status)
	}

	w = env.do(t, "GET", "/api/v1/projects?status=planning&limit=10", nil)
	expectStatus(t, w, http.StatusOK)
	if list := decode[[]project.Project](t, w); len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	budget := 300000.0
	w = env.do(t, "PUT", "/api/v1/projects/"+p.ID, project.UpdateRequest{Budget: &budget})
	expectStatus(t, w, http.StatusOK)
	if got := decode[project.Project](t, w); got.Budget != budget {
		t.Fatalf("budget = %v", got.Budget)
	}

	w = env.do(t, "GET", "/api/v1/projects/"+p.ID+"/metrics", nil)
	expectStatus(t, w, http.StatusOK)
	if m := decode[project.Metrics](t, w); m.ProjectID != p.ID || m.Budget != budget {
		t.Fatalf("unexpected metrics %+v", m)
	}

	w = env.do(t, "DELETE", "/api/v1/projects/"+p.ID, nil)
	expectStatus(t, w, http.StatusNoContent)
	w = env.do(t, "GET", "/api/v1/projects/"+p.ID, nil)
	expectErrorCode(t, w, http.StatusNotFound, "not_found")
}

func TestProjectValidation(t *testing.T) {
	env := newTestRouter(t, testOptions{})
	tests := []struct {
		name, method, path string
		body               any
	}{
		{"missing name", "POST", "/api/v1/projects", project.CreateRequest{}},
		{"negative budget", "POST", "/api/v1/projects", project.CreateRequest{Name: "x", Budget: -1}},
		{"bad status filter", "GET", "/api/v1/projects?status=unknown", nil},
		{"bad limit", "GET", "/api/v1/projects?limit=abc", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body)
			expectErrorCode(t, w, http.StatusBadRequest, "validation_error")
		})
	}
}

func TestProjectTasks(t *testing.T) {
	env := newTestRouter(t, testOptions{})
	w := env.do(t, "POST", "/api/v1/projects", project.CreateRequest{Name: "Depot"})
	expectStatus(t, w, http.StatusCreated)
	p := decode[project.Project](t, w)

	due := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	w = env.do(t, "POST", "/api/v1/projects/"+p.ID+"/tasks", task.CreateRequest{
		ProjectID: "ignored",
		Title:     "Pour foundation",
		Priority:  task.PriorityHigh,
		DueDate:   due,
	})
	expectStatus(t, w, http.StatusCreated)
	tk := decode[task.Task](t, w)
	if tk.ProjectID != p.ID {
		t.Fatalf("task project = %q, want %q", tk.ProjectID, p.ID)
	}

	w = env.do(t, "GET", "/api/v1/projects/"+p.ID+"/tasks", nil)
	expectStatus(t, w, http.StatusOK)
	if list := decode[[]task.Task](t, w); len(list) != 1 {
		t.Fatalf("expected 1 task, got %d", len(list))
	}

	done := task.StatusCompleted
	w = env.do(t, "PUT", "/api/v1/tasks/"+tk.ID, task.UpdateRequest{Status: &done})
	expectStatus(t, w, http.StatusOK)
	if got := decode[task.Task](t, w); got.CompletedDate == nil {
		t.Fatal("completed task has no completion date")
	}

	w = env.do(t, "GET", "/api/v1/projects/missing/tasks", nil)
	expectErrorCode(t, w, http.StatusNotFound, "not_found")

	w = env.do(t, "DELETE", "/api/v1/tasks/"+tk.ID, nil)
	expectStatus(t, w, http.StatusNoContent)
	w = env.do(t, "GET", "/api/v1/tasks/"+tk.ID, nil)
	expectErrorCode(t, w, http.StatusNotFound, "not_found")
}

// --- Finance ---

func createInvoice(t *testing.T, env *testEnv, amount float64) invoice.Invoice {
	t.Helper()
	w := env.do(t, "POST", "/api/v1/invoices", invoice.CreateRequest{
		ProjectID: "p-1",
		ClientID:  "c-1",
		IssueDate: "2026-03-01",
		DueDate:   "2026-03-31",
		LineItems: []invoice.LineInput{{Description: "Framing", Quantity: 1, UnitPrice: amount}},
	})
	expectStatus(t, w, http.StatusCreated)
	return decode[invoice.Invoice](t, w)
}

func TestInvoiceFlow(t *testing.T) {
	env := newTestRouter(t, testOptions{})
	inv := createInvoice(t, env, 500)
	if !strings.HasPrefix(inv.InvoiceNumber, "INV-") || inv.Status != invoice.StatusDraft {
		t.Fatalf("unexpected invoice %s %s", inv.InvoiceNumber, inv.Status)
	}
	if inv.CreatedBy != user.LocalAdmin.Subject {
		t.Errorf("created_by = %q", inv.CreatedBy)
	}

	w := env.do(t, "POST", "/api/v1/invoices/"+inv.ID+"/send", nil)
	expectStatus(t, w, http.StatusOK)
	w = env.do(t, "POST", "/api/v1/invoices/"+inv.ID+"/send", nil)
	expectErrorCode(t, w, http.StatusConflict, "invalid_transition")

	w = env.do(t, "POST", "/api/v1/invoices/"+inv.ID+"/pay", cfhttp.PayRequest{Amount: 500})
	expectStatus(t, w, http.StatusOK)
	if got := decode[invoice.Invoice](t, w); got.Status != invoice.StatusPaid || got.AmountDue != 0 {
		t.Fatalf("unexpected invoice after payment %+v", got)
	}

	w = env.do(t, "GET", "/api/v1/invoices/stats?project_id=p-1", nil)
	expectStatus(t, w, http.StatusOK)
	if s := decode[invoice.Stats](t, w); s.TotalInvoices != 1 || s.TotalPaid != 500 {
		t.Fatalf("unexpected stats %+v", s)
	}

	w = env.do(t, "GET", "/api/v1/invoices?status=paid", nil)
	expectStatus(t, w, http.StatusOK)
	if list := decode[[]invoice.Invoice](t, w); len(list) != 1 {
		t.Fatalf("expected 1 paid invoice, got %d", len(list))
	}

	w = env.do(t, "POST", "/api/v1/invoices/overdue", nil)
	expectStatus(t, w, http.StatusOK)

	w = env.do(t, "GET", "/api/v1/invoices?status=nope", nil)
	expectErrorCode(t, w, http.StatusBadRequest, "validation_error")
}

func TestPurchaseOrderFlow(t *testing.T) {
	env := newTestRouter(t, testOptions{})

	w := env.do(t, "POST", "/api/v1/vendors", vendor.CreateRequest{Name: "Bolt Supply", Category: "hardware"})
	expectStatus(t, w, http.StatusCreated)
	v := decode[vendor.Vendor](t, w)

	w = env.do(t, "GET", "/api/v1/vendors/categories", nil)
	expectStatus(t, w, http.StatusOK)
	if cats := decode[[]string](t, w); len(cats) != 1 || cats[0] != "hardware" {
		t.Fatalf("categories = %v", cats)
	}

	w = env.do(t, "POST", "/api/v1/purchase-orders", purchaseorder.CreateRequest{
		ProjectID: "p-1",
		VendorID:  v.ID,
		OrderDate: "2026-03-01",
		LineItems: []purchaseorder.LineInput{{Description: "Anchor bolts", Quantity: 10, UnitPrice: 2.5}},
	})
	expectStatus(t, w, http.StatusCreated)
	po := decode[purchaseorder.PurchaseOrder](t, w)
	if po.VendorName != "Bolt Supply" {
		t.Fatalf("vendor name = %q", po.VendorName)
	}

	w = env.do(t, "POST", "/api/v1/purchase-orders/"+po.ID+"/approve", nil)
	expectStatus(t, w, http.StatusOK)

	w = env.do(t, "POST", "/api/v1/purchase-orders/"+po.ID+"/receive", cfhttp.ReceiveRequest{
		Items: []purchaseorder.Receipt{{LineItemID: po.LineItems[0].ID, ReceivedQuantity: 10}},
	})
	expectStatus(t, w, http.StatusOK)
	if got := decode[purchaseorder.PurchaseOrder](t, w); got.Status != purchaseorder.StatusReceived {
		t.Fatalf("status = %s, want received", got.Status)
	}

	w = env.do(t, "GET", "/api/v1/purchase-orders/stats", nil)
	expectStatus(t, w, http.StatusOK)
	if s := decode[purchaseorder.Stats](t, w); s.TotalOrders != 1 || s.PendingDeliveries != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}

	w = env.do(t, "POST", "/api/v1/purchase-orders/"+po.ID+"/send", nil)
	expectErrorCode(t, w, http.StatusConflict, "invalid_transition")
}

func signWebhook(body []byte) string {
	return "sha256=" + hex.EncodeToString(middleware.Sign(body, testWebhookSecret))
}

func TestPaymentWebhook(t *testing.T) {
	env := newTestRouter(t, testOptions{authEnabled: true})
	token, err := env.auth.IssueToken("ops", user.RoleManager, 0)
	if err != nil {
		t.Fatal(err)
	}
	bearer := "Bearer " + token

	w := env.do(t, "POST", "/api/v1/payments", payment.CreateRequest{
		ProjectID:       "p-1",
		Amount:          125,
		PaymentDate:     "2026-03-10",
		Method:          payment.MethodOnline,
		GatewayIntentID: "pi_123",
	}, "Authorization", bearer)
	expectStatus(t, w, http.StatusCreated)
	p := decode[payment.Payment](t, w)
	if p.Status != payment.StatusPending {
		t.Fatalf("status = %s, want pending", p.Status)
	}

	body, _ := json.Marshal(payment.GatewayEvent{ID: "evt_1", Type: "payment_intent.succeeded", IntentID: "pi_123"})

	tests := []struct {
		name    string
		headers []string
		status  int
		changed bool
	}{
		{"missing signature", nil, http.StatusUnauthorized, false},
		{"bad signature", []string{"X-Signature-256", "sha256=00"}, http.StatusForbidden, false},
		{"valid signature", []string{"X-Signature-256", signWebhook(body)}, http.StatusOK, true},
		{"replayed event", []string{"X-Signature-256", signWebhook(body)}, http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/webhooks/payments", string(body), tt.headers...)
			expectStatus(t, w, tt.status)
			if tt.status != http.StatusOK {
				return
			}
			if ack := decode[cfhttp.WebhookAck](t, w); !ack.Received || ack.Changed != tt.changed {
				t.Fatalf("ack = %+v, want changed=%v", ack, tt.changed)
			}
		})
	}

	w = env.do(t, "GET", "/api/v1/payments/"+p.ID, nil, "Authorization", bearer)
	expectStatus(t, w, http.StatusOK)
	if got := decode[payment.Payment](t, w); got.Status != payment.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}

	w = env.do(t, "GET", "/api/v1/payments?method=barter", nil, "Authorization", bearer)
	expectErrorCode(t, w, http.StatusBadRequest, "validation_error")
}

func TestDashboard(t *testing.T) {
	env := newTestRouter(t, testOptions{})
	createInvoice(t, env, 100)
	w := env.do(t, "POST", "/api/v1/projects", project.CreateRequest{Name: "Annex"})
	expectStatus(t, w, http.StatusCreated)

	w = env.do(t, "GET", "/api/v1/dashboard", nil)
	expectStatus(t, w, http.StatusOK)
	d := decode[service.Dashboard](t, w)
	if d.TotalProjects != 1 || d.Invoices == nil || d.Invoices.TotalInvoices != 1 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
}

// --- Auth ---

func TestAuthAndRoles(t *testing.T) {
	env := newTestRouter(t, testOptions{authEnabled: true})
	viewer, err := env.auth.IssueToken("vera", user.RoleViewer, 0)
	if err != nil {
		t.Fatal(err)
	}
	reviewer, err := env.auth.IssueToken("rex", user.RoleReviewer, 0)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, method, path, token string
		body                      any
		status                    int
	}{
		{"health is public", "GET", "/api/v1/health", "", nil, http.StatusOK},
		{"no token", "GET", "/api/v1/projects", "", nil, http.StatusUnauthorized},
		{"garbage token", "GET", "/api/v1/projects", "garbage", nil, http.StatusUnauthorized},
		{"viewer can read", "GET", "/api/v1/projects", viewer, nil, http.StatusOK},
		{"viewer cannot write", "POST", "/api/v1/projects", viewer, project.CreateRequest{Name: "x"}, http.StatusForbidden},
		{"viewer cannot run agents", "POST", "/api/v1/ai-agents/execute", viewer, cfhttp.ExecuteRequest{AgentType: "memory"}, http.StatusForbidden},
		{"viewer cannot decide", "POST", "/api/v1/ai-agents/hitl/x/approve", viewer, cfhttp.ReviewDecisionRequest{}, http.StatusForbidden},
		{"reviewer can decide", "POST", "/api/v1/ai-agents/hitl/x/approve", reviewer, cfhttp.ReviewDecisionRequest{}, http.StatusNotFound},
		{"reviewer cannot write", "POST", "/api/v1/vendors", reviewer, vendor.CreateRequest{Name: "x"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.token != "" {
				headers = []string{"Authorization", "Bearer " + tt.token}
			}
			w := env.do(t, tt.method, tt.path, tt.body, headers...)
			expectStatus(t, w, tt.status)
		})
	}
}

func TestMeAndLogout(t *testing.T) {
	env := newTestRouter(t, testOptions{authEnabled: true})
	token, err := env.auth.IssueToken("rex", user.RoleReviewer, 0)
	if err != nil {
		t.Fatal(err)
	}
	auth := []string{"Authorization", "Bearer " + token}

	w := env.do(t, "GET", "/api/v1/auth/me", nil, auth...)
	expectStatus(t, w, http.StatusOK)
	if p := decode[user.Principal](t, w); p.Subject != "rex" || p.Role != user.RoleReviewer {
		t.Fatalf("unexpected principal %+v", p)
	}

	w = env.do(t, "POST", "/api/v1/auth/logout", nil, auth...)
	expectStatus(t, w, http.StatusNoContent)

	w = env.do(t, "GET", "/api/v1/auth/me", nil, auth...)
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestLogoutWithoutBearer(t *testing.T) {
	env := newTestRouter(t, testOptions{})
	w := env.do(t, "POST", "/api/v1/auth/logout", nil)
	expectErrorCode(t, w, http.StatusBadRequest, "validation_error")
}
