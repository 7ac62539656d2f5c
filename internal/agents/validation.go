package agents

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/GustheTrader/Build-flow/internal/domain/agent"
)

// budgetVarianceLimit is the largest tolerated absolute budget variance ratio.
const budgetVarianceLimit = 0.2

// Validation checks invoices, budgets, schedules and compliance data.
// Input: {type, data}.
type Validation struct{}

func (*Validation) Kind() agent.Kind { return agent.KindValidation }

func (*Validation) Process(_ context.Context, in agent.Input) (agent.Result, error) {
	typ := str(in, "type")
	data := obj(in, "data")
	if data == nil {
		data = map[string]any{}
	}

	var checks, errs []string
	payload := map[string]any{}
	conf := 0.88
	switch typ {
	case "invoice":
		checks = []string{"amount_positive", "client_exists", "line_items_valid", "tax_calculated"}
		if amt, ok := num(data, "amount"); !ok || amt <= 0 {
			errs = append(errs, "Amount must be positive")
		}
		if !truthy(data["clientId"]) {
			errs = append(errs, "Client ID required")
		}
		payload["severity"] = severity(errs, nil, "high")
	case "budget":
		checks = []string{"total_matches_categories", "no_negative_amounts", "variance_within_threshold"}
		if v, ok := num(data, "variance"); ok && math.Abs(v) > budgetVarianceLimit {
			errs = append(errs, "Budget variance exceeds 20% threshold")
		}
	case "schedule":
		checks = []string{"no_circular_dependencies", "realistic_durations", "resource_availability"}
		tasks := items(data, "tasks")
		known := make(map[string]bool, len(tasks))
		for _, t := range tasks {
			known[fmt.Sprint(idOf(t))] = true
		}
		for _, t := range tasks {
			deps, _ := t["dependencies"].([]any)
			for _, d := range deps {
				if !known[fmt.Sprint(d)] {
					errs = append(errs, fmt.Sprintf("Task %v has invalid dependency %v", idOf(t), d))
				}
			}
		}
	case "compliance":
		checks = []string{"safety_requirements", "permit_status", "insurance_valid", "certifications"}
		var warnings []string
		if !truthy(data["safetyPlan"]) {
			warnings = append(warnings, "Safety plan not uploaded")
		}
		if !truthy(data["permits"]) {
			errs = append(errs, "Required permits missing")
		}
		payload["warnings"] = toAny(warnings)
		payload["severity"] = severity(errs, warnings, "critical")
	default:
		errs = []string{"Unknown validation type"}
		conf = 0.3
	}

	payload["valid"] = len(errs) == 0
	payload["errors"] = toAny(errs)
	if checks != nil {
		payload["checks"] = toAny(checks)
	}

	reasoning := "Validation passed"
	if len(errs) > 0 {
		reasoning = "Validation failed: " + strings.Join(errs, ", ")
	}
	return agent.Result{
		Payload:    payload,
		Confidence: conf,
		Reasoning:  reasoning,
		Metadata:   map[string]any{"validationType": typ, "checksPerformed": toAny(checks)},
	}, nil
}

func severity(errs, warnings []string, onError string) string {
	switch {
	case len(errs) > 0:
		return onError
	case len(warnings) > 0:
		return "medium"
	}
	return "none"
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
