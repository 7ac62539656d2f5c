package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/GustheTrader/Build-flow/internal/adapter/otel"
	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/workflow"
)

// step is one fixed dispatch of a workflow.
type step struct {
	label string
	kind  agent.Kind
	input func(wctx map[string]any) agent.Input
}

// workflowSteps holds the ordered follow-up dispatches per workflow. A
// recognized workflow without follow-ups only runs the orchestration step.
var workflowSteps = map[string][]step{
	workflow.ProjectPlanning: {
		{"validation", agent.KindValidation, func(c map[string]any) agent.Input {
			return agent.Input{"type": "budget", "data": c["budget"]}
		}},
		{"memory", agent.KindMemory, func(c map[string]any) agent.Input {
			return agent.Input{"operation": "retrieve_context", "query": c["projectType"]}
		}},
		{"forecast", agent.KindMLPipeline, func(c map[string]any) agent.Input {
			return agent.Input{"task": "cost_forecast", "data": c}
		}},
		{"optimization", agent.KindOptimization, func(c map[string]any) agent.Input {
			return agent.Input{"problem": "schedule_optimization", "data": c}
		}},
		{"graph_analysis", agent.KindGraph, func(c map[string]any) agent.Input {
			return agent.Input{"query": "dependency_analysis", "params": c}
		}},
	},
	workflow.DependencyMapping: nil,
	workflow.MultiStepApproval: nil,
}

// WorkflowRunner executes named workflows as a fixed sequence of dispatches.
type WorkflowRunner struct {
	dispatcher *Dispatcher
	metrics    *cfotel.Metrics
}

// NewWorkflowRunner creates a runner on top of d.
func NewWorkflowRunner(d *Dispatcher) *WorkflowRunner {
	return &WorkflowRunner{dispatcher: d}
}

// SetMetrics enables OpenTelemetry instruments.
func (r *WorkflowRunner) SetMetrics(m *cfotel.Metrics) { r.metrics = m }

// Workflows lists the recognized workflow names.
func (r *WorkflowRunner) Workflows() []string {
	names := make([]string, 0, len(workflowSteps))
	for n := range workflowSteps {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Run dispatches the orchestration step and then every step of the named
// workflow in order. An unknown workflow is not an error: the orchestration
// agent reports it and no steps run. The first failing step fails the run.
func (r *WorkflowRunner) Run(ctx context.Context, name string, wctx map[string]any, projectID string) (*workflow.Result, error) {
	ctx, span := cfotel.StartWorkflowSpan(ctx, name, projectID)
	defer span.End()
	if wctx == nil {
		wctx = map[string]any{}
	}

	orch, err := r.dispatcher.Execute(ctx, agent.KindOrchestration, agent.Input{"workflow": name, "context": wctx}, projectID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("workflow %s: orchestration: %w", name, err)
	}

	steps := workflowSteps[name]
	res := &workflow.Result{
		WorkflowName:      name,
		ProjectID:         projectID,
		OrchestrationStep: orch,
		StepResults:       make([]workflow.StepResult, 0, len(steps)),
	}
	for _, s := range steps {
		rec, err := r.dispatcher.Execute(ctx, s.kind, s.input(wctx), projectID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("workflow %s: step %s: %w", name, s.label, err)
		}
		res.StepResults = append(res.StepResults, workflow.StepResult{StepLabel: s.label, Result: rec})
	}

	if r.metrics != nil {
		r.metrics.WorkflowRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("workflow.name", name)))
	}
	slog.InfoContext(ctx, "workflow completed", "workflow", name, "project_id", projectID,
		"steps", len(res.StepResults), "reviews", res.ReviewCount())
	return res, nil
}
