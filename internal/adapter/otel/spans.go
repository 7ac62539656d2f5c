package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "buildflow"

// StartAgentSpan starts a span around one agent dispatch.
func StartAgentSpan(ctx context.Context, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "agent.execute",
		trace.WithAttributes(attribute.String("agent.kind", kind)),
	)
}

// StartWorkflowSpan starts a span for a workflow run.
func StartWorkflowSpan(ctx context.Context, name, projectID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("workflow.name", name),
			attribute.String("project.id", projectID),
		),
	)
}

// StartReviewSpan starts a span for a review decision.
func StartReviewSpan(ctx context.Context, requestID, outcome string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "hitl.resolve",
		trace.WithAttributes(
			attribute.String("hitl.request_id", requestID),
			attribute.String("hitl.outcome", outcome),
		),
	)
}
