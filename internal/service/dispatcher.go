package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/GustheTrader/Build-flow/internal/adapter/otel"
	"github.com/GustheTrader/Build-flow/internal/agents"
	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/review"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
	"github.com/GustheTrader/Build-flow/internal/port/messagequeue"
)

const (
	keyAgentLog        = "agent:log:"
	keyAgentExecutions = "agent:executions"
)

// Escalator receives recommendations that need human review.
type Escalator interface {
	Enqueue(ctx context.Context, rec agent.Recommendation, projectID string) (*review.Request, error)
	PendingCount(ctx context.Context) (int, error)
}

// Dispatcher routes agent requests to the registered agent of each kind,
// keeps per-kind call statistics and escalates low-confidence results.
type Dispatcher struct {
	mu     sync.RWMutex
	agents map[agent.Kind]agents.Agent

	statsMu sync.Mutex
	stats   map[agent.Kind]agent.MetricsRecord

	thresholds agent.Thresholds
	store      kvstore.Store
	logTTL     time.Duration
	escalator  Escalator
	events     *EventPublisher
	metrics    *cfotel.Metrics
	now        func() time.Time
}

// NewDispatcher creates a dispatcher with no agents registered. store holds
// the execution log; logTTL bounds how long each record is kept.
func NewDispatcher(store kvstore.Store, thresholds agent.Thresholds, logTTL time.Duration) *Dispatcher {
	return &Dispatcher{
		agents:     make(map[agent.Kind]agents.Agent),
		stats:      make(map[agent.Kind]agent.MetricsRecord),
		thresholds: thresholds,
		store:      store,
		logTTL:     logTTL,
		now:        time.Now,
	}
}

// SetEscalator wires the review queue that receives HITL recommendations.
func (d *Dispatcher) SetEscalator(e Escalator) { d.escalator = e }

// SetEvents wires event publication.
func (d *Dispatcher) SetEvents(p *EventPublisher) { d.events = p }

// SetMetrics enables OpenTelemetry instruments.
func (d *Dispatcher) SetMetrics(m *cfotel.Metrics) { d.metrics = m }

// Register binds a to kind, replacing any previous binding.
func (d *Dispatcher) Register(kind agent.Kind, a agents.Agent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[kind] = a
}

// Kinds returns the registered kinds in registry order.
func (d *Dispatcher) Kinds() []agent.Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]agent.Kind, 0, len(d.agents))
	for _, k := range agent.Kinds {
		if _, ok := d.agents[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Thresholds returns the confidence gate in effect.
func (d *Dispatcher) Thresholds() agent.Thresholds { return d.thresholds }

// ExecuteNamed resolves an API-facing agent name, including aliases such as
// "cost_forecast_agent", and executes it. Fields implied by the alias are
// filled in only where the caller left them unset.
func (d *Dispatcher) ExecuteNamed(ctx context.Context, name string, in agent.Input, projectID string) (agent.Recommendation, error) {
	kind, overlay, err := agent.ParseKind(name)
	if err != nil {
		return agent.Recommendation{}, err
	}
	if len(overlay) > 0 {
		merged := make(agent.Input, len(in)+len(overlay))
		maps.Copy(merged, overlay)
		maps.Copy(merged, in)
		in = merged
	}
	return d.Execute(ctx, kind, in, projectID)
}

// Execute runs the agent bound to kind. Statistics are updated whether or
// not the agent fails. Agent errors are returned unchanged; escalation and
// audit failures are only logged.
func (d *Dispatcher) Execute(ctx context.Context, kind agent.Kind, in agent.Input, projectID string) (rec agent.Recommendation, err error) {
	d.mu.RLock()
	a, ok := d.agents[kind]
	d.mu.RUnlock()
	if !ok {
		return agent.Recommendation{}, fmt.Errorf("dispatch %q: %w", kind, domain.ErrUnknownAgentKind)
	}

	ctx, span := cfotel.StartAgentSpan(ctx, string(kind))
	defer span.End()

	start := d.now()
	defer func() {
		latency := d.now().Sub(start)
		d.observe(ctx, kind, latency, err != nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	res, err := a.Process(ctx, in)
	latency := d.now().Sub(start)
	if err != nil {
		slog.ErrorContext(ctx, "agent execution failed", "agent", kind, "project_id", projectID, "error", err)
		d.writeLog(ctx, kind, projectID, in, nil, err, latency)
		return agent.Recommendation{}, err
	}

	rec = agent.NewRecommendation(kind, res, d.thresholds, d.now())
	span.SetAttributes(
		attribute.Float64("agent.confidence", rec.Confidence),
		attribute.Bool("agent.hitl_required", rec.HITLRequired),
	)
	d.writeLog(ctx, kind, projectID, in, &rec, nil, latency)

	if rec.HITLRequired && d.escalator != nil {
		if req, qerr := d.escalator.Enqueue(ctx, rec, projectID); qerr != nil {
			slog.WarnContext(ctx, "hitl enqueue failed", "agent", kind, "error", qerr)
		} else {
			slog.InfoContext(ctx, "recommendation escalated", "agent", kind, "review_id", req.ID, "confidence", rec.Confidence)
		}
	}

	d.events.Publish(ctx, messagequeue.SubjectAgentExecuted, messagequeue.AgentExecutedPayload{
		AgentKind:    string(kind),
		Confidence:   rec.Confidence,
		HITLRequired: rec.HITLRequired,
		LatencyMs:    float64(latency) / float64(time.Millisecond),
		ProjectID:    projectID,
	})
	return rec, nil
}

func (d *Dispatcher) observe(ctx context.Context, kind agent.Kind, latency time.Duration, failed bool) {
	d.statsMu.Lock()
	d.stats[kind] = d.stats[kind].Observe(latency, failed)
	d.statsMu.Unlock()

	if d.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("agent.kind", string(kind)))
		d.metrics.AgentExecutions.Add(ctx, 1, attrs)
		d.metrics.AgentLatency.Record(ctx, float64(latency)/float64(time.Millisecond), attrs)
		if failed {
			d.metrics.AgentErrors.Add(ctx, 1, attrs)
		}
	}
}

// executionRecord is the audit entry written for every dispatch.
type executionRecord struct {
	AgentKind      agent.Kind            `json:"agent_kind"`
	ProjectID      string                `json:"project_id,omitempty"`
	Input          agent.Input           `json:"input"`
	Recommendation *agent.Recommendation `json:"recommendation,omitempty"`
	Error          string                `json:"error,omitempty"`
	LatencyMs      float64               `json:"latency_ms"`
	Timestamp      time.Time             `json:"timestamp"`
}

func (d *Dispatcher) writeLog(ctx context.Context, kind agent.Kind, projectID string, in agent.Input, rec *agent.Recommendation, execErr error, latency time.Duration) {
	if d.store == nil {
		return
	}
	now := d.now().UTC()
	entry := executionRecord{
		AgentKind:      kind,
		ProjectID:      projectID,
		Input:          in,
		Recommendation: rec,
		LatencyMs:      float64(latency) / float64(time.Millisecond),
		Timestamp:      now,
	}
	if execErr != nil {
		entry.Error = execErr.Error()
	}
	key := keyAgentLog + string(kind) + ":" + strconv.FormatInt(now.UnixNano(), 10)
	if err := putJSON(ctx, d.store, key, entry, d.logTTL); err != nil {
		slog.WarnContext(ctx, "execution log write failed", "key", key, "error", err)
		return
	}
	if err := d.store.RPush(ctx, keyAgentExecutions, key); err != nil {
		slog.WarnContext(ctx, "execution log index failed", "key", key, "error", err)
		return
	}
	if d.logTTL > 0 {
		if err := d.store.Expire(ctx, keyAgentExecutions, d.logTTL); err != nil {
			slog.WarnContext(ctx, "execution log index expiry failed", "error", err)
		}
	}
}

// Metrics returns a snapshot of per-kind statistics.
func (d *Dispatcher) Metrics() map[agent.Kind]agent.MetricsRecord {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return maps.Clone(d.stats)
}

// Health describes the dispatcher for the health endpoint.
type Health struct {
	Status           string                             `json:"status"`
	Agents           []agent.Kind                       `json:"agents"`
	Metrics          map[agent.Kind]agent.MetricsRecord `json:"metrics"`
	PendingReviews   int                                `json:"pending_reviews"`
	RecentExecutions int                                `json:"recent_executions"`
	Thresholds       agent.Thresholds                   `json:"thresholds"`
}

// Health reports registered agents, statistics and the review backlog.
func (d *Dispatcher) Health(ctx context.Context) (*Health, error) {
	h := &Health{
		Status:     "healthy",
		Agents:     d.Kinds(),
		Metrics:    d.Metrics(),
		Thresholds: d.thresholds,
	}
	if d.escalator != nil {
		n, err := d.escalator.PendingCount(ctx)
		if err != nil {
			return nil, err
		}
		h.PendingReviews = n
	}
	if d.store != nil {
		n, err := d.store.LLen(ctx, keyAgentExecutions)
		if err != nil {
			return nil, err
		}
		h.RecentExecutions = n
	}
	return h, nil
}

// RegisterAll binds every agent in list under its own kind.
func (d *Dispatcher) RegisterAll(list []agents.Agent) {
	for _, a := range list {
		d.Register(a.Kind(), a)
	}
}
