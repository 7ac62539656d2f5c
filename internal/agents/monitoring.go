package agents

import (
	"context"
	"fmt"

	"github.com/GustheTrader/Build-flow/internal/domain/agent"
)

// Monitoring reports tracing and performance figures. Input: {operation, data}.
type Monitoring struct {
	env Env
}

func (*Monitoring) Kind() agent.Kind { return agent.KindMonitoring }

func (m *Monitoring) Process(_ context.Context, in agent.Input) (agent.Result, error) {
	op := str(in, "operation")

	var payload map[string]any
	confidence := 0.95
	switch op {
	case "trace_workflow":
		payload = map[string]any{
			"traceId": m.env.NewID(),
			"spans": []any{
				span("API Request", 45),
				span("Database Query", 120),
				span("AI Processing", 350),
			},
			"totalDuration": 515,
			"status":        "success",
		}
	case "performance_metrics":
		payload = map[string]any{
			"avgResponseTime": 245,
			"p95ResponseTime": 450,
			"errorRate":       0.005,
			"throughput":      125,
			"cacheHitRate":    0.85,
		}
	case "optimize_suggestion":
		payload = map[string]any{
			"suggestions": []any{
				map[string]any{
					"type":                "caching",
					"description":         "Cache frequently accessed project data",
					"expectedImprovement": "30% faster response",
				},
				map[string]any{
					"type":                "query_optimization",
					"description":         "Add index on project_id + status",
					"expectedImprovement": "50% faster queries",
				},
			},
		}
	default:
		payload = map[string]any{"status": "unknown_operation"}
		confidence = unknownConfidence
	}

	return agent.Result{
		Payload:    payload,
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("Monitoring operation: %s", op),
		Metadata:   map[string]any{"operation": op, "tracingEnabled": true},
	}, nil
}

func span(name string, ms int) map[string]any {
	return map[string]any{"name": name, "duration": ms, "status": "success"}
}
