package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/GustheTrader/Build-flow/internal/adapter/memkv"
	"github.com/GustheTrader/Build-flow/internal/agents"
	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/review"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
	"github.com/GustheTrader/Build-flow/internal/port/messagequeue"
)

// newTestStack wires a dispatcher with every real agent and a review queue
// over store.
func newTestStack(store kvstore.Store) (*Dispatcher, *ReviewQueue) {
	d := NewDispatcher(store, testThresholds, 0)
	d.now = fixedClock()
	d.RegisterAll(agents.All(agents.Env{Now: fixedClock(), NewID: seqIDs("ag")}))
	q := NewReviewQueue(store, 0)
	q.now = fixedClock()
	q.newID = seqIDs("rev")
	d.SetEscalator(q)
	return d, q
}

func TestDispatcher_EveryKindHonoursGate(t *testing.T) {
	d, _ := newTestStack(memkv.New())
	inputs := map[agent.Kind][]agent.Input{
		agent.KindOrchestration: {{"workflow": "project_planning"}, {"workflow": "nope"}},
		agent.KindMonitoring:    {{"operation": "trace_workflow"}, {"operation": "nope"}},
		agent.KindValidation:    {{"type": "invoice", "data": map[string]any{"amount": 10.0, "clientId": "c"}}, {"type": "nope"}},
		agent.KindOptimization:  {{"problem": "payment_timing"}, {"problem": "nope"}},
		agent.KindMemory:        {{"operation": "find_patterns"}, {"operation": "nope"}},
		agent.KindMLPipeline:    {{"task": "schedule_risk"}, {"task": "nope"}},
		agent.KindGraph:         {{"query": "impact_analysis"}, {"query": "nope"}},
	}
	for kind, cases := range inputs {
		for _, in := range cases {
			rec, err := d.Execute(t.Context(), kind, in, "")
			if err != nil {
				t.Fatalf("%s %v: %v", kind, in, err)
			}
			if rec.Confidence < 0 || rec.Confidence > 1 {
				t.Errorf("%s: confidence %v out of range", kind, rec.Confidence)
			}
			if rec.HITLRequired != (rec.Confidence < testThresholds.High) {
				t.Errorf("%s: hitl_required=%v for confidence %v", kind, rec.HITLRequired, rec.Confidence)
			}
			if rec.AgentKind != kind {
				t.Errorf("agent kind = %s, want %s", rec.AgentKind, kind)
			}
		}
	}
}

func TestDispatcher_UnknownKind(t *testing.T) {
	d := NewDispatcher(memkv.New(), testThresholds, 0)
	_, err := d.Execute(t.Context(), agent.KindGraph, nil, "")
	if !errors.Is(err, domain.ErrUnknownAgentKind) {
		t.Fatalf("err = %v, want ErrUnknownAgentKind", err)
	}
	if len(d.Metrics()) != 0 {
		t.Fatal("unknown kind must not create metrics")
	}
}

func TestDispatcher_ExecuteNamed(t *testing.T) {
	d, _ := newTestStack(memkv.New())
	rec, err := d.ExecuteNamed(t.Context(), "cost_forecast_agent", agent.Input{
		"budget": 100000.0, "actualCost": 50000.0, "completion": 0.5,
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.AgentKind != agent.KindMLPipeline {
		t.Fatalf("kind = %s", rec.AgentKind)
	}
	if got := rec.Payload["forecastedTotalCost"]; got != 100000.0 {
		t.Errorf("forecastedTotalCost = %v, want 100000", got)
	}
	if got := rec.Payload["variance"]; got != 0.0 {
		t.Errorf("variance = %v, want 0", got)
	}

	if _, err := d.ExecuteNamed(t.Context(), "no_such_agent", nil, ""); !errors.Is(err, domain.ErrUnknownAgentKind) {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatcher_ValidationScenario(t *testing.T) {
	d, q := newTestStack(memkv.New())
	rec, err := d.ExecuteNamed(t.Context(), "validation_agent", agent.Input{
		"type": "invoice",
		"data": map[string]any{"amount": -5.0, "clientId": nil},
	}, "p-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Payload["valid"] != false {
		t.Fatalf("valid = %v", rec.Payload["valid"])
	}
	errs, _ := rec.Payload["errors"].([]any)
	var amount, client bool
	for _, e := range errs {
		s, _ := e.(string)
		amount = amount || strings.Contains(strings.ToLower(s), "amount")
		client = client || strings.Contains(strings.ToLower(s), "client")
	}
	if !amount || !client {
		t.Fatalf("errors = %v, want amount and client entries", errs)
	}

	// 0.88 clears the 0.80 gate: nothing is queued.
	pending, err := q.List(t.Context(), review.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}
}

func TestDispatcher_EscalatesLowConfidence(t *testing.T) {
	d, q := newTestStack(memkv.New())
	for range 2 {
		rec, err := d.Execute(t.Context(), agent.KindValidation, agent.Input{"type": "unknown"}, "p-9")
		if err != nil {
			t.Fatal(err)
		}
		if !rec.HITLRequired {
			t.Fatal("expected hitl_required")
		}
	}
	pending, err := q.List(t.Context(), review.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2 independent requests", len(pending))
	}
	if pending[0].ID == pending[1].ID || pending[0].ProjectID != "p-9" {
		t.Fatalf("unexpected pending requests: %+v", pending)
	}
}

func TestDispatcher_MetricsCountFailures(t *testing.T) {
	d := NewDispatcher(memkv.New(), testThresholds, 0)
	boom := errors.New("boom")
	failing := &stubAgent{kind: agent.KindMemory, err: boom}
	d.Register(agent.KindMemory, failing)

	if _, err := d.Execute(t.Context(), agent.KindMemory, nil, ""); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want agent error unchanged", err)
	}
	d.Register(agent.KindMemory, &stubAgent{kind: agent.KindMemory, res: agent.Result{Confidence: 0.9}})
	if _, err := d.Execute(t.Context(), agent.KindMemory, nil, ""); err != nil {
		t.Fatal(err)
	}

	m := d.Metrics()[agent.KindMemory]
	if m.CallCount != 2 || m.ErrorCount != 1 {
		t.Fatalf("metrics = %+v, want 2 calls and 1 error", m)
	}
}

func TestDispatcher_MetricsSnapshotIsCopy(t *testing.T) {
	d := NewDispatcher(memkv.New(), testThresholds, 0)
	d.Register(agent.KindMemory, &stubAgent{kind: agent.KindMemory, res: agent.Result{Confidence: 0.9}})
	_, _ = d.Execute(t.Context(), agent.KindMemory, nil, "")

	snap := d.Metrics()
	snap[agent.KindMemory] = agent.MetricsRecord{CallCount: 99}
	if d.Metrics()[agent.KindMemory].CallCount != 1 {
		t.Fatal("snapshot mutation leaked into dispatcher")
	}
}

func TestDispatcher_ConcurrentExecute(t *testing.T) {
	d, _ := newTestStack(memkv.New())
	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			_, _ = d.Execute(context.Background(), agent.KindGraph, agent.Input{"query": "dependency_analysis"}, "")
		})
	}
	wg.Wait()
	if got := d.Metrics()[agent.KindGraph].CallCount; got != n {
		t.Fatalf("call count = %d, want %d", got, n)
	}
}

func TestDispatcher_EnqueueFailureIsNotFatal(t *testing.T) {
	store := &failingStore{Store: memkv.New()}
	d, _ := newTestStack(store)
	store.failRPush = true

	rec, err := d.Execute(t.Context(), agent.KindValidation, agent.Input{"type": "unknown"}, "")
	if err != nil {
		t.Fatalf("execute failed on escalation error: %v", err)
	}
	if !rec.HITLRequired {
		t.Fatal("recommendation changed by escalation failure")
	}
}

func TestDispatcher_ExecutionLogAndEvents(t *testing.T) {
	store := memkv.New()
	d, _ := newTestStack(store)
	mq := &recordingQueue{}
	d.SetEvents(NewEventPublisher(mq, nil, nil))

	if _, err := d.Execute(t.Context(), agent.KindGraph, agent.Input{"query": "impact_analysis"}, "p-1"); err != nil {
		t.Fatal(err)
	}
	keys, err := store.LRange(t.Context(), keyAgentExecutions, 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || !strings.HasPrefix(keys[0], keyAgentLog+string(agent.KindGraph)+":") {
		t.Fatalf("execution index = %v", keys)
	}
	entry, err := getJSON[executionRecord](t.Context(), store, keys[0])
	if err != nil {
		t.Fatal(err)
	}
	if entry.ProjectID != "p-1" || entry.Recommendation == nil {
		t.Fatalf("execution record = %+v", entry)
	}
	if got := mq.published(); len(got) != 1 || got[0] != messagequeue.SubjectAgentExecuted {
		t.Fatalf("published = %v", got)
	}
}

func TestDispatcher_Health(t *testing.T) {
	d, _ := newTestStack(memkv.New())
	if _, err := d.Execute(t.Context(), agent.KindValidation, agent.Input{"type": "x"}, ""); err != nil {
		t.Fatal(err)
	}
	h, err := d.Health(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != "healthy" || len(h.Agents) != len(agent.Kinds) {
		t.Fatalf("health = %+v", h)
	}
	if h.PendingReviews != 1 || h.RecentExecutions != 1 {
		t.Fatalf("pending=%d recent=%d, want 1 and 1", h.PendingReviews, h.RecentExecutions)
	}
}
