// Package agents implements the seven simulated agents. Each agent is a
// deterministic branch table over one mode field of its input; an unmatched
// mode yields a low-confidence "unknown" result rather than an error.
package agents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/GustheTrader/Build-flow/internal/domain/agent"
)

// Fallback confidence for an unrecognized mode.
const unknownConfidence = 0.5

// Agent turns a loosely typed input into a Result.
type Agent interface {
	Kind() agent.Kind
	Process(ctx context.Context, in agent.Input) (agent.Result, error)
}

// Env carries the nondeterministic inputs some branches need.
type Env struct {
	Now   func() time.Time
	NewID func() string
}

// DefaultEnv uses the wall clock and random UUIDs.
func DefaultEnv() Env {
	return Env{Now: time.Now, NewID: uuid.NewString}
}

// All returns one instance of every agent kind, in agent.Kinds order.
func All(env Env) []Agent {
	return []Agent{
		&Orchestration{},
		&Monitoring{env: env},
		&Validation{},
		&Optimization{env: env},
		&Memory{env: env},
		&MLPipeline{},
		&Graph{},
	}
}

// --- input helpers ---

func str(in map[string]any, key string) string {
	s, _ := in[key].(string)
	return s
}

func obj(in map[string]any, key string) map[string]any {
	m, _ := in[key].(map[string]any)
	return m
}

// num reads a numeric field. JSON numbers decode as float64; ints are
// accepted for inputs built in code.
func num(in map[string]any, key string) (float64, bool) {
	switch v := in[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// truthy mirrors loose presence checks: zero values, empty strings and
// empty collections count as absent.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// items returns the list of objects under key, skipping non-object entries.
func items(in map[string]any, key string) []map[string]any {
	raw, _ := in[key].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// idOf renders an entity id that may arrive as a string or a number.
func idOf(m map[string]any) any {
	return m["id"]
}

// dataOf returns input["data"] when it is an object, else the input itself.
func dataOf(in agent.Input) map[string]any {
	if d := obj(in, "data"); d != nil {
		return d
	}
	return in
}
