package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/invoice"
	"github.com/GustheTrader/Build-flow/internal/domain/project"
	"github.com/GustheTrader/Build-flow/internal/domain/purchaseorder"
)

// Dashboard is the portfolio overview shown on the landing page.
type Dashboard struct {
	Projects       map[project.Status]int             `json:"projects"`
	TotalProjects  int                                `json:"total_projects"`
	Invoices       *invoice.Stats                     `json:"invoices"`
	PurchaseOrders *purchaseorder.Stats               `json:"purchase_orders"`
	PendingReviews int                                `json:"pending_reviews"`
	AgentMetrics   map[agent.Kind]agent.MetricsRecord `json:"agent_metrics"`
}

// DashboardService gathers the dashboard from the other services.
type DashboardService struct {
	projects   *ProjectService
	invoices   *InvoiceService
	orders     *PurchaseOrderService
	reviews    *ReviewQueue
	dispatcher *Dispatcher
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(projects *ProjectService, invoices *InvoiceService, orders *PurchaseOrderService, reviews *ReviewQueue, dispatcher *Dispatcher) *DashboardService {
	return &DashboardService{projects: projects, invoices: invoices, orders: orders, reviews: reviews, dispatcher: dispatcher}
}

// Get loads every section concurrently. The first failure cancels the rest.
func (s *DashboardService) Get(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.projects.Count(ctx)
		if err != nil {
			return err
		}
		d.Projects = counts
		for _, n := range counts {
			d.TotalProjects += n
		}
		return nil
	})
	g.Go(func() error {
		st, err := s.invoices.Stats(ctx, "")
		d.Invoices = st
		return err
	})
	g.Go(func() error {
		st, err := s.orders.Stats(ctx, "")
		d.PurchaseOrders = st
		return err
	})
	g.Go(func() error {
		n, err := s.reviews.PendingCount(ctx)
		d.PendingReviews = n
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	d.AgentMetrics = s.dispatcher.Metrics()
	return d, nil
}
