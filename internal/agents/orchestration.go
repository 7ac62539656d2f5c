package agents

import (
	"context"
	"fmt"

	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/workflow"
)

// Orchestration plans multi-step workflows. Input: {workflow, context}.
type Orchestration struct{}

func (*Orchestration) Kind() agent.Kind { return agent.KindOrchestration }

func (*Orchestration) Process(_ context.Context, in agent.Input) (agent.Result, error) {
	name := str(in, "workflow")
	wctx := obj(in, "context")

	var payload map[string]any
	confidence := 0.9
	switch name {
	case workflow.ProjectPlanning:
		payload = map[string]any{
			"steps": []any{
				planStep("Budget Analysis", 1),
				planStep("Resource Allocation", 2),
				planStep("Timeline Creation", 3),
				planStep("Risk Assessment", 4),
			},
			"estimatedDuration": "2-3 weeks",
		}
	case workflow.DependencyMapping:
		tasks := items(wctx, "tasks")
		deps := make([]any, 0, len(tasks))
		for i, t := range tasks {
			dependsOn := []any{}
			if i > 0 {
				dependsOn = append(dependsOn, idOf(tasks[i-1]))
			}
			deps = append(deps, map[string]any{"task": idOf(t), "dependsOn": dependsOn})
		}
		payload = map[string]any{
			"criticalPath": []any{"Task 1", "Task 3", "Task 5"},
			"dependencies": deps,
		}
	case workflow.MultiStepApproval:
		payload = map[string]any{
			"approvalChain":           []any{"PM", "Controller", "Executive"},
			"currentStep":             "PM",
			"estimatedCompletionTime": "2-3 days",
		}
	default:
		payload = map[string]any{"status": "unknown_workflow"}
		confidence = unknownConfidence
	}

	steps, _ := payload["steps"].([]any)
	if steps == nil {
		steps = []any{}
	}
	return agent.Result{
		Payload:    payload,
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("Orchestrated %s workflow", name),
		Metadata:   map[string]any{"workflow": name, "steps": steps},
	}, nil
}

func planStep(name string, priority int) map[string]any {
	return map[string]any{"name": name, "status": "pending", "priority": priority}
}
