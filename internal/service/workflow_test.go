package service

import (
	"errors"
	"slices"
	"testing"

	"github.com/GustheTrader/Build-flow/internal/adapter/memkv"
	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/workflow"
)

func TestWorkflowRunner_ProjectPlanning(t *testing.T) {
	d, _ := newTestStack(memkv.New())
	r := NewWorkflowRunner(d)

	res, err := r.Run(t.Context(), workflow.ProjectPlanning, map[string]any{
		"budget":      map[string]any{"variance": 0.05},
		"projectType": "residential",
		"actualCost":  50000.0,
		"completion":  0.5,
	}, "p-1")
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		label string
		kind  agent.Kind
	}{
		{"validation", agent.KindValidation},
		{"memory", agent.KindMemory},
		{"forecast", agent.KindMLPipeline},
		{"optimization", agent.KindOptimization},
		{"graph_analysis", agent.KindGraph},
	}
	if len(res.StepResults) != len(want) {
		t.Fatalf("steps = %d, want %d", len(res.StepResults), len(want))
	}
	for i, w := range want {
		got := res.StepResults[i]
		if got.StepLabel != w.label || got.Result.AgentKind != w.kind {
			t.Errorf("step %d = %s/%s, want %s/%s", i, got.StepLabel, got.Result.AgentKind, w.label, w.kind)
		}
	}
	if res.OrchestrationStep.AgentKind != agent.KindOrchestration {
		t.Fatalf("orchestration kind = %s", res.OrchestrationStep.AgentKind)
	}
	if res.StepResults[0].Result.Payload["valid"] != true {
		t.Errorf("budget validation = %v", res.StepResults[0].Result.Payload)
	}

	// One orchestration call plus one call per step; monitoring is not part of the plan.
	m := d.Metrics()
	for _, k := range agent.Kinds {
		want := int64(1)
		if k == agent.KindMonitoring {
			want = 0
		}
		if m[k].CallCount != want {
			t.Errorf("%s call count = %d, want %d", k, m[k].CallCount, want)
		}
	}
}

func TestWorkflowRunner_UnknownWorkflow(t *testing.T) {
	d, _ := newTestStack(memkv.New())
	res, err := NewWorkflowRunner(d).Run(t.Context(), "does_not_exist", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.StepResults) != 0 {
		t.Fatalf("steps = %d, want 0", len(res.StepResults))
	}
	if res.OrchestrationStep.Confidence != 0.5 || !res.OrchestrationStep.HITLRequired {
		t.Fatalf("orchestration = %+v", res.OrchestrationStep)
	}
}

func TestWorkflowRunner_RecognizedWithoutSteps(t *testing.T) {
	d, _ := newTestStack(memkv.New())
	res, err := NewWorkflowRunner(d).Run(t.Context(), workflow.DependencyMapping, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.StepResults) != 0 || res.OrchestrationStep.Confidence < 0.8 {
		t.Fatalf("result = %+v", res)
	}
}

func TestWorkflowRunner_StepFailureFailsRun(t *testing.T) {
	d, _ := newTestStack(memkv.New())
	boom := errors.New("memory offline")
	d.Register(agent.KindMemory, &stubAgent{kind: agent.KindMemory, err: boom})

	_, err := NewWorkflowRunner(d).Run(t.Context(), workflow.ProjectPlanning, map[string]any{}, "")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want step error", err)
	}
	if d.Metrics()[agent.KindMLPipeline].CallCount != 0 {
		t.Fatal("steps after the failure must not run")
	}
}

func TestWorkflowRunner_Workflows(t *testing.T) {
	got := NewWorkflowRunner(nil).Workflows()
	want := []string{workflow.DependencyMapping, workflow.MultiStepApproval, workflow.ProjectPlanning}
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Fatalf("workflows = %v, want %v", got, want)
	}
}
