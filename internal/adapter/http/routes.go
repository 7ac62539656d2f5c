package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/GustheTrader/Build-flow/internal/config"
	"github.com/GustheTrader/Build-flow/internal/domain/user"
	"github.com/GustheTrader/Build-flow/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router. Reads are
// open to every authenticated role; writes need an editor role and review
// decisions a reviewer role.
func MountRoutes(r chi.Router, h *Handlers, webhookCfg config.Webhook) {
	r.Get("/health", h.Health)

	// Payment gateway webhook (outside auth, HMAC verified)
	r.With(middleware.PaymentSignature(webhookCfg.PaymentSecret)).
		Post("/api/v1/webhooks/payments", h.PaymentWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/dashboard", h.GetDashboard)

		r.Get("/auth/me", h.Me)
		r.Post("/auth/logout", h.Logout)

		editor := middleware.RequireRole(user.EditorRoles...)
		reviewer := middleware.RequireRole(user.ReviewerRoles...)

		// Agents
		r.Route("/ai-agents", func(r chi.Router) {
			r.With(editor).Post("/execute", h.ExecuteAgent)
			r.With(editor).Post("/orchestrate", h.Orchestrate)
			r.Get("/metrics", h.AgentMetrics)
			r.Get("/health", h.AgentHealth)

			r.Get("/hitl", h.ListReviews)
			r.Get("/hitl/{id}", h.GetReview)
			r.With(reviewer).Post("/hitl/{id}/approve", h.ApproveReview)
			r.With(reviewer).Post("/hitl/{id}/reject", h.RejectReview)
			r.With(reviewer).Post("/hitl/{id}/modify", h.ModifyReview)
		})

		// Projects
		r.Get("/projects", h.ListProjects)
		r.With(editor).Post("/projects", h.CreateProject)
		r.Get("/projects/{id}", h.GetProject)
		r.With(editor).Put("/projects/{id}", h.UpdateProject)
		r.With(editor).Delete("/projects/{id}", h.DeleteProject)
		r.Get("/projects/{id}/metrics", h.ProjectMetrics)

		// Tasks (nested under projects)
		r.Get("/projects/{id}/tasks", h.ListProjectTasks)
		r.With(editor).Post("/projects/{id}/tasks", h.CreateProjectTask)

		// Tasks (direct access)
		r.Get("/tasks/{id}", h.GetTask)
		r.With(editor).Put("/tasks/{id}", h.UpdateTask)
		r.With(editor).Delete("/tasks/{id}", h.DeleteTask)

		// Invoices
		r.Get("/invoices", h.ListInvoices)
		r.With(editor).Post("/invoices", h.CreateInvoice)
		r.Get("/invoices/stats", h.InvoiceStats)
		r.With(editor).Post("/invoices/overdue", h.MarkOverdueInvoices)
		r.Get("/invoices/{id}", h.GetInvoice)
		r.With(editor).Put("/invoices/{id}", h.UpdateInvoice)
		r.With(editor).Delete("/invoices/{id}", h.DeleteInvoice)
		r.With(editor).Post("/invoices/{id}/send", h.SendInvoice)
		r.With(editor).Post("/invoices/{id}/pay", h.PayInvoice)

		// Purchase orders
		r.Get("/purchase-orders", h.ListPurchaseOrders)
		r.With(editor).Post("/purchase-orders", h.CreatePurchaseOrder)
		r.Get("/purchase-orders/stats", h.PurchaseOrderStats)
		r.Get("/purchase-orders/{id}", h.GetPurchaseOrder)
		r.With(editor).Put("/purchase-orders/{id}", h.UpdatePurchaseOrder)
		r.With(editor).Delete("/purchase-orders/{id}", h.DeletePurchaseOrder)
		r.With(editor).Post("/purchase-orders/{id}/approve", h.ApprovePurchaseOrder)
		r.With(editor).Post("/purchase-orders/{id}/send", h.SendPurchaseOrder)
		r.With(editor).Post("/purchase-orders/{id}/receive", h.ReceivePurchaseOrder)

		// Vendors
		r.Get("/vendors", h.ListVendors)
		r.With(editor).Post("/vendors", h.CreateVendor)
		r.Get("/vendors/categories", h.VendorCategories)
		r.Get("/vendors/{id}", h.GetVendor)
		r.With(editor).Put("/vendors/{id}", h.UpdateVendor)
		r.With(editor).Delete("/vendors/{id}", h.DeleteVendor)

		// Payments
		r.Get("/payments", h.ListPayments)
		r.With(editor).Post("/payments", h.CreatePayment)
		r.Get("/payments/{id}", h.GetPayment)
	})
}
