package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/GustheTrader/Build-flow/internal/adapter/cachedkv"
	cfhttp "github.com/GustheTrader/Build-flow/internal/adapter/http"
	cfmcp "github.com/GustheTrader/Build-flow/internal/adapter/mcp"
	"github.com/GustheTrader/Build-flow/internal/adapter/memkv"
	cfnats "github.com/GustheTrader/Build-flow/internal/adapter/nats"
	"github.com/GustheTrader/Build-flow/internal/adapter/natskv"
	cfotel "github.com/GustheTrader/Build-flow/internal/adapter/otel"
	"github.com/GustheTrader/Build-flow/internal/adapter/postgres"
	"github.com/GustheTrader/Build-flow/internal/adapter/ristretto"
	"github.com/GustheTrader/Build-flow/internal/adapter/tiered"
	"github.com/GustheTrader/Build-flow/internal/adapter/ws"
	"github.com/GustheTrader/Build-flow/internal/agents"
	"github.com/GustheTrader/Build-flow/internal/config"
	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/logger"
	"github.com/GustheTrader/Build-flow/internal/middleware"
	"github.com/GustheTrader/Build-flow/internal/port/cache"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
	"github.com/GustheTrader/Build-flow/internal/port/messagequeue"
	"github.com/GustheTrader/Build-flow/internal/resilience"
	"github.com/GustheTrader/Build-flow/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	idempotencyTTL   = 24 * time.Hour
	purgeInterval    = 10 * time.Minute
	rateCleanupEvery = time.Minute
	rateMaxIdle      = 10 * time.Minute
)

func main() {
	_ = godotenv.Load()

	var err error
	if len(os.Args) > 1 && os.Args[1] != "serve" {
		err = runCommand(os.Args[1], os.Args[2:])
	} else {
		err = run()
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"log_level", cfg.Logging.Level,
		"auth", cfg.Auth.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	shutdownOTEL, err := cfotel.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	var queue *cfnats.Queue
	if cfg.Store.Backend == config.BackendNATS || cfg.NATS.Publish || cfg.NATS.CacheKV != "" {
		queue, err = cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := queue.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()
	}

	store, err := openStore(ctx, cfg, queue)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// --- Events ---

	hub := ws.NewHub(originPatterns(cfg.Server.CORSOrigin)...)
	var events *service.EventPublisher
	if queue != nil && cfg.NATS.Publish {
		breaker := resilience.NewBreaker("nats-publish", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
		events = service.NewEventPublisher(queue, breaker, hub)
		cancelForward, err := service.ForwardToBroadcaster(ctx, queue, hub,
			messagequeue.SubjectAgentExecuted,
			messagequeue.SubjectHITLCreated,
			messagequeue.SubjectHITLResolved,
			messagequeue.SubjectPaymentUpdated,
		)
		if err != nil {
			return fmt.Errorf("event forwarding: %w", err)
		}
		defer cancelForward()
	} else {
		events = service.NewEventPublisher(nil, nil, hub)
	}
	events.SetMetrics(metrics)

	// --- Services ---

	thresholds := agent.Thresholds{Low: cfg.HITL.ThresholdLow, High: cfg.HITL.ThresholdHigh}
	dispatcher := service.NewDispatcher(store, thresholds, cfg.Agents.ExecutionLogTTL)
	dispatcher.RegisterAll(agents.All(agents.DefaultEnv()))
	dispatcher.SetEvents(events)
	dispatcher.SetMetrics(metrics)

	reviews := service.NewReviewQueue(store, cfg.HITL.RequestTTL)
	reviews.SetEvents(events)
	reviews.SetMetrics(metrics)
	dispatcher.SetEscalator(reviews)

	runner := service.NewWorkflowRunner(dispatcher)
	runner.SetMetrics(metrics)

	projects := service.NewProjectService(store, dispatcher, runner)
	invoices := service.NewInvoiceService(store)
	vendors := service.NewVendorService(store)
	orders := service.NewPurchaseOrderService(store, vendors)
	payments := service.NewPaymentService(store, invoices)
	payments.SetEvents(events)
	authSvc := service.NewAuthService(store, cfg.Auth)

	handlers := &cfhttp.Handlers{
		Dispatcher:     dispatcher,
		Workflows:      runner,
		Reviews:        reviews,
		Projects:       projects,
		Tasks:          service.NewTaskService(store, projects),
		Invoices:       invoices,
		PurchaseOrders: orders,
		Vendors:        vendors,
		Payments:       payments,
		Dashboard:      service.NewDashboardService(projects, invoices, orders, reviews, dispatcher),
		Auth:           authSvc,
		Store:          store,
		Version:        version,
	}

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	go limiter.RunCleanup(ctx, rateCleanupEvery, rateMaxIdle)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(limiter.Handler)
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))
	r.Use(middleware.Idempotency(store, idempotencyTTL))

	// WebSocket endpoint, outside the request timeout
	r.Get("/ws", hub.HandleWS)

	// API routes
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
		cfhttp.MountRoutes(r, handlers, cfg.Webhook)
	})

	// --- MCP ---

	var mcpSrv *cfmcp.Server
	if cfg.MCP.Enabled {
		mcpSrv = cfmcp.NewServer(cfmcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "buildflow",
			Version: version,
		}, cfmcp.ServerDeps{
			Agents:    dispatcher,
			Workflows: runner,
			Reviews:   reviews,
			Authn:     middleware.Auth(authSvc, cfg.Auth.Enabled),
		})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mcpSrv != nil {
		if err := mcpSrv.Stop(shutdownCtx); err != nil {
			slog.Warn("mcp shutdown", "error", err)
		}
	}
	return srv.Shutdown(shutdownCtx)
}

// openStore opens the configured backend and, for remote backends, puts the
// read-through blob cache in front of it.
func openStore(ctx context.Context, cfg *config.Config, queue *cfnats.Queue) (kvstore.Store, error) {
	var backend kvstore.Store
	switch cfg.Store.Backend {
	case config.BackendMemory:
		slog.Info("using in-memory store")
		return memkv.New(), nil

	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")
		pg := postgres.NewStore(pool)
		go purgeExpired(ctx, pg)
		backend = pg

	case config.BackendNATS:
		kv, err := queue.KeyValue(ctx, cfg.NATS.KVBucket, 0)
		if err != nil {
			return nil, err
		}
		slog.Info("using nats kv store", "bucket", cfg.NATS.KVBucket)
		backend = natskv.New(kv)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("l1 cache: %w", err)
	}
	var blobCache cache.Cache = l1
	if queue != nil && cfg.NATS.CacheKV != "" {
		kv, err := queue.KeyValue(ctx, cfg.NATS.CacheKV, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("l2 cache: %w", err)
		}
		blobCache = tiered.New(l1, natskv.NewCache(kv), cfg.Cache.TTL)
		slog.Info("tiered blob cache enabled", "bucket", cfg.NATS.CacheKV)
	}
	return cachedkv.New(backend, blobCache, cfg.Cache.TTL), nil
}

// purgeExpired removes expired rows until ctx is cancelled.
func purgeExpired(ctx context.Context, pg *postgres.Store) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.PurgeExpired(ctx)
			if err != nil {
				slog.Warn("purge expired keys", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("purged expired keys", "count", n)
			}
		}
	}
}

// originPatterns turns the CORS origin into a WebSocket origin pattern.
func originPatterns(corsOrigin string) []string {
	if corsOrigin == "" || corsOrigin == "*" {
		return nil
	}
	u, err := url.Parse(corsOrigin)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
