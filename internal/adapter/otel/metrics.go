package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "buildflow"

// Metrics holds the Build-flow metric instruments.
type Metrics struct {
	AgentExecutions metric.Int64Counter
	AgentErrors     metric.Int64Counter
	AgentLatency    metric.Float64Histogram
	ReviewsCreated  metric.Int64Counter
	ReviewsResolved metric.Int64Counter
	WorkflowRuns    metric.Int64Counter
	EventsDropped   metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.AgentExecutions, "buildflow.agent.executions", "Agent executions by kind"},
		{&m.AgentErrors, "buildflow.agent.errors", "Agent executions that returned an error"},
		{&m.ReviewsCreated, "buildflow.hitl.created", "Recommendations queued for human review"},
		{&m.ReviewsResolved, "buildflow.hitl.resolved", "Review requests resolved, by outcome"},
		{&m.WorkflowRuns, "buildflow.workflow.runs", "Workflow runs by name"},
		{&m.EventsDropped, "buildflow.events.dropped", "Events that could not be published"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.AgentLatency, err = meter.Float64Histogram("buildflow.agent.latency_ms",
		metric.WithDescription("Agent processing latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return m, nil
}
