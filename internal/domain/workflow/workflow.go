// Package workflow defines the result shape of a named multi-agent workflow.
package workflow

import "github.com/GustheTrader/Build-flow/internal/domain/agent"

// Known workflow names.
const (
	ProjectPlanning   = "project_planning"
	DependencyMapping = "dependency_mapping"
	MultiStepApproval = "multi_step_approval"
)

// StepResult is the outcome of one labelled step.
type StepResult struct {
	StepLabel string               `json:"step_label"`
	Result    agent.Recommendation `json:"result"`
}

// Result aggregates an orchestration dispatch and the ordered step dispatches.
type Result struct {
	WorkflowName      string               `json:"workflow_name"`
	ProjectID         string               `json:"project_id,omitempty"`
	OrchestrationStep agent.Recommendation `json:"orchestration_step"`
	StepResults       []StepResult         `json:"step_results"`
}

// ReviewCount returns how many recommendations in the result require human review.
func (r *Result) ReviewCount() int {
	n := 0
	if r.OrchestrationStep.HITLRequired {
		n++
	}
	for i := range r.StepResults {
		if r.StepResults[i].Result.HITLRequired {
			n++
		}
	}
	return n
}
