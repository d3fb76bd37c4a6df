package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fluxgraph/workflow-core/coretypes"
)

// EvalContext is the evaluation triple named in spec.md §4.2:
// "{context, affordance, parameters}". Context carries arbitrary runtime
// facts (hasApproval, labels, scope, ...) that do not belong to the
// strongly-typed ContextView/Affordance/Parameters shapes but that rules
// still need to test (e.g. "context.hasApproval=true").
type EvalContext struct {
	View       coretypes.ContextView
	Affordance coretypes.Affordance
	Parameters map[string]any
	AgentType  string
	Context    map[string]any
}

// resolve looks up a dotted field path ("context.hasApproval",
// "affordance.actionType", "parameters.confirmed") against ec. The second
// return is false if the path cannot be resolved at all (distinct from a
// resolved nil/zero value).
func (ec EvalContext) resolve(field string) (any, bool) {
	parts := strings.Split(field, ".")
	if len(parts) == 0 {
		return nil, false
	}
	switch parts[0] {
	case "affordance":
		return resolveAffordanceField(ec.Affordance, parts[1:])
	case "parameters":
		return resolveMapPath(ec.Parameters, parts[1:])
	case "context":
		return resolveMapPath(ec.Context, parts[1:])
	default:
		return nil, false
	}
}

func resolveAffordanceField(a coretypes.Affordance, rest []string) (any, bool) {
	if len(rest) == 0 {
		return a, true
	}
	switch rest[0] {
	case "id":
		return a.ID, true
	case "actionType":
		return a.ActionType, true
	case "rel":
		return a.Rel, true
	case "target":
		return a.Target, true
	case "enabled":
		return a.Enabled, true
	case "requiresCredential":
		return a.RequiresCredential, true
	default:
		return nil, false
	}
}

func resolveMapPath(m map[string]any, rest []string) (any, bool) {
	if len(rest) == 0 {
		return m, true
	}
	cur, ok := m[rest[0]]
	if !ok {
		return nil, false
	}
	if len(rest) == 1 {
		return cur, true
	}
	nested, ok := cur.(map[string]any)
	if !ok {
		return nil, false
	}
	return resolveMapPath(nested, rest[1:])
}

// evaluate applies the condition's operator to the resolved field value.
func (c Condition) evaluate(ec EvalContext) bool {
	actual, ok := ec.resolve(c.Field)
	switch c.Op {
	case OpExists:
		return ok
	case OpNotExists:
		return !ok
	case OpNeq:
		// A field that does not resolve is vacuously "not equal" to any
		// value, so an absent field satisfies neq the same way an
		// explicit mismatch does (e.g. a missing parameters.confirmed
		// must deny a destructive action just as confirmed=false does).
		if !ok {
			return true
		}
		return !equalLoose(actual, c.Value)
	}
	if !ok {
		// Every remaining operator requires the field to resolve.
		return false
	}
	switch c.Op {
	case OpEq:
		return equalLoose(actual, c.Value)
	case OpIn:
		return memberOf(actual, c.Value)
	case OpNotIn:
		return !memberOf(actual, c.Value)
	case OpContains:
		return containsValue(actual, c.Value)
	case OpMatches:
		pattern, ok := c.Value.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(fmt.Sprintf("%v", actual))
	case OpGt, OpLt, OpGte, OpLte:
		return compareNumeric(actual, c.Value, c.Op)
	default:
		return false
	}
}

func equalLoose(a, b any) bool {
	if fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b) {
		return true
	}
	return a == b
}

func memberOf(needle any, haystack any) bool {
	list, ok := toSlice(haystack)
	if !ok {
		return false
	}
	for _, item := range list {
		if equalLoose(needle, item) {
			return true
		}
	}
	return false
}

func containsValue(container any, needle any) bool {
	switch v := container.(type) {
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(v, s)
	default:
		list, ok := toSlice(container)
		if !ok {
			return false
		}
		for _, item := range list {
			if equalLoose(item, needle) {
				return true
			}
		}
		return false
	}
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	default:
		return nil, false
	}
}

func compareNumeric(a, b any, op Operator) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case OpGt:
		return af > bf
	case OpLt:
		return af < bf
	case OpGte:
		return af >= bf
	case OpLte:
		return af <= bf
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
