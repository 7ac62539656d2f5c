// Package agent defines the simulated agent kinds and the Recommendation
// envelope every agent invocation produces.
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/GustheTrader/Build-flow/internal/domain"
)

// Kind identifies one of the fixed simulated agents.
type Kind string

const (
	KindOrchestration Kind = "langgraph"
	KindMonitoring    Kind = "langsmith"
	KindValidation    Kind = "validation"
	KindOptimization  Kind = "minimax"
	KindMemory        Kind = "memory"
	KindMLPipeline    Kind = "ml_pipeline"
	KindGraph         Kind = "graph_db"
)

// Kinds lists every agent kind in registry order.
var Kinds = []Kind{
	KindOrchestration,
	KindMonitoring,
	KindValidation,
	KindOptimization,
	KindMemory,
	KindMLPipeline,
	KindGraph,
}

// IsValid reports whether k is one of the fixed kinds.
func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Input is the loosely typed request body an agent branches on.
type Input map[string]any

// Result is what an agent returns before the dispatcher stamps it into a Recommendation.
type Result struct {
	Payload    map[string]any
	Confidence float64
	Reasoning  string
	Metadata   map[string]any
}

// Recommendation is the normalized output of exactly one agent invocation.
// HITLRequired is fixed when the value is built and never recomputed.
type Recommendation struct {
	AgentKind    Kind           `json:"agent_kind"`
	Payload      map[string]any `json:"payload"`
	Confidence   float64        `json:"confidence"`
	Reasoning    string         `json:"reasoning"`
	HITLRequired bool           `json:"hitl_required"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Thresholds is the confidence gate pair. Only High decides escalation.
type Thresholds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// RequiresReview reports whether a confidence value falls under the gate.
func (t Thresholds) RequiresReview(confidence float64) bool {
	return confidence < t.High
}

// NewRecommendation stamps an agent result. Confidence is clamped into [0,1].
func NewRecommendation(kind Kind, r Result, th Thresholds, now time.Time) Recommendation {
	conf := r.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	payload := r.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return Recommendation{
		AgentKind:    kind,
		Payload:      payload,
		Confidence:   conf,
		Reasoning:    r.Reasoning,
		HITLRequired: th.RequiresReview(conf),
		Metadata:     r.Metadata,
		CreatedAt:    now.UTC(),
	}
}

// MetricsRecord accumulates per-kind call statistics.
type MetricsRecord struct {
	CallCount        int64   `json:"call_count"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	ErrorCount       int64   `json:"error_count"`
}

// Observe folds one call into the record using an incremental mean.
func (m MetricsRecord) Observe(latency time.Duration, failed bool) MetricsRecord {
	ms := float64(latency) / float64(time.Millisecond)
	m.AverageLatencyMs = (m.AverageLatencyMs*float64(m.CallCount) + ms) / float64(m.CallCount+1)
	m.CallCount++
	if failed {
		m.ErrorCount++
	}
	return m
}

// ParseKind resolves a kind name as accepted at the API boundary. Besides the
// canonical names it accepts the "<kind>_agent" form and the descriptive
// aliases. The returned Input overlay carries the mode an alias implies.
func ParseKind(name string) (Kind, Input, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if k := Kind(n); k.IsValid() {
		return k, nil, nil
	}
	if alias, ok := aliases[n]; ok {
		return alias.kind, alias.overlay, nil
	}
	if base, ok := strings.CutSuffix(n, "_agent"); ok {
		if k := Kind(base); k.IsValid() {
			return k, nil, nil
		}
		if alias, ok := aliases[base]; ok {
			return alias.kind, alias.overlay, nil
		}
	}
	return "", nil, fmt.Errorf("agent kind %q: %w", name, domain.ErrUnknownAgentKind)
}

type aliasTarget struct {
	kind    Kind
	overlay Input
}

var aliases = map[string]aliasTarget{
	"orchestration":   {kind: KindOrchestration},
	"monitoring":      {kind: KindMonitoring},
	"optimization":    {kind: KindOptimization},
	"ml":              {kind: KindMLPipeline},
	"graph":           {kind: KindGraph},
	"cost_forecast":   {kind: KindMLPipeline, overlay: Input{"task": "cost_forecast"}},
	"schedule_risk":   {kind: KindMLPipeline, overlay: Input{"task": "schedule_risk"}},
	"budget_variance": {kind: KindMLPipeline, overlay: Input{"task": "budget_variance"}},
}
