package policy

import (
	"context"
	"sort"
	"strings"

	"github.com/fluxgraph/workflow-core/coretypes"
)

// Input is the proposal the Policy Engine evaluates: an agent (identified
// by its AAT/agent type via the ContextView), a ContextView, and the
// affordance/parameters the agent chose to traverse.
type Input struct {
	View        coretypes.ContextView
	AffordanceID string
	Parameters   map[string]any
}

// Decision is the result of evaluating one Input. Allow is the final
// verdict once all strict denials are accounted for; DenyReasons explains
// every contributing denial (rules do not short-circuit on the first
// match, per spec.md §4.2 step 3); Warnings carries advisory violations;
// AuditLog carries audit-only violations for out-of-band logging.
type Decision struct {
	Allow       bool
	DenyReasons []string
	Warnings    []string
	AuditLog    []string
}

// Engine evaluates proposals against a rule set and a registered set of
// deontic constraints, per spec.md §4.2.
type Engine struct {
	rules       []Rule
	constraints []DeonticConstraint
}

// New builds an Engine with the given rules and registered constraints,
// plus the built-in rules spec.md §4.2 requires to always be present.
func New(rules []Rule, constraints []DeonticConstraint) *Engine {
	e := &Engine{
		rules:       append(append([]Rule(nil), BuiltinRules()...), rules...),
		constraints: constraints,
	}
	return e
}

// Evaluate runs the algorithm of spec.md §4.2 steps (1)-(5).
func (e *Engine) Evaluate(_ context.Context, in Input) Decision {
	affordance, ok := in.View.Affordance(in.AffordanceID)
	if !ok || !affordance.Enabled {
		return Decision{Allow: false, DenyReasons: []string{"affordance is missing or disabled"}}
	}

	ec := EvalContext{
		View:       in.View,
		Affordance: affordance,
		Parameters: in.Parameters,
		AgentType:  in.View.AgentType,
		Context:    parametersAsContext(in.Parameters, in.View),
	}

	applicable := e.applicableRules(ec)
	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Priority > applicable[j].Priority
	})

	var denyReasons []string
	for _, rule := range applicable {
		if !rule.matches(ec) {
			continue
		}
		if rule.Effect == EffectDeny {
			reason := rule.Name
			if reason == "" {
				reason = rule.ID
			}
			denyReasons = append(denyReasons, reason)
		}
		// Allow-rules never short-circuit: every deny-rule must still be
		// evaluated so the caller sees the full set of violations.
	}

	var warnings, auditLog []string
	for _, c := range in.View.Constraints {
		if _, ok := parseSimpleCondition(c.Rule); !ok {
			// An unparseable rule is never evaluated, so it records no violation.
			continue
		}
		held := constraintHeld(c.Rule, ec)
		dc := DeonticConstraint{ID: c.ID, Modality: inferModality(c.Rule), Condition: Condition{}, EnforcementLevel: c.EnforcementLevel}
		if !dc.violated(held) {
			continue
		}
		recordViolation(dc.EnforcementLevel, c.ID, &denyReasons, &warnings, &auditLog)
	}
	for _, dc := range e.constraints {
		held := dc.Condition.evaluate(ec)
		if !dc.violated(held) {
			continue
		}
		recordViolation(dc.EnforcementLevel, dc.ID, &denyReasons, &warnings, &auditLog)
	}

	return Decision{
		Allow:       len(denyReasons) == 0,
		DenyReasons: denyReasons,
		Warnings:    warnings,
		AuditLog:    auditLog,
	}
}

func recordViolation(level coretypes.EnforcementLevel, id string, deny, warn, audit *[]string) {
	switch level {
	case coretypes.EnforcementStrict:
		*deny = append(*deny, "constraint "+id+" violated")
	case coretypes.EnforcementAdvisory:
		*warn = append(*warn, "constraint "+id+" violated")
	case coretypes.EnforcementAuditOnly:
		*audit = append(*audit, "constraint "+id+" violated")
	}
}

// constraintHeld evaluates a free-form rule string carried on an inline
// ContextView constraint. Inline constraints are authored by the Context
// Broker as simple "field op value" expressions; unparseable rules report
// held=false, and Evaluate skips them before any modality is applied, so
// they never spuriously deny (the must-trace
// obligation quirk from spec.md §9 depends on this: an obligation whose
// condition can never be evaluated false never denies).
func constraintHeld(rule string, ec EvalContext) bool {
	cond, ok := parseSimpleCondition(rule)
	if !ok {
		return false
	}
	return cond.evaluate(ec)
}

// inferModality derives a constraint's modality from its rule text by
// convention: rules starting with "must " are obligations, "must-not "/
// "forbid " are prohibitions, everything else is a permission (never
// fails). This lets declarative constraint authors write natural-language
// prefixed rules without a separate modality field on coretypes.Constraint.
func inferModality(rule string) Modality {
	lower := strings.ToLower(strings.TrimSpace(rule))
	switch {
	case strings.HasPrefix(lower, "must-not ") || strings.HasPrefix(lower, "forbid "):
		return ModalityProhibition
	case strings.HasPrefix(lower, "must "):
		return ModalityObligation
	default:
		return ModalityPermission
	}
}

func (e *Engine) applicableRules(ec EvalContext) []Rule {
	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if r.applies(ec) {
			out = append(out, r)
		}
	}
	return out
}

// parametersAsContext exposes the View's scope and agent type under
// "context.*", plus Parameters["hasApproval"] when the caller supplied it,
// so built-in rules like "context.hasApproval" resolve. No other parameter
// and none of the View's credentials are copied into "context.*".
func parametersAsContext(params map[string]any, view coretypes.ContextView) map[string]any {
	ctx := map[string]any{
		"scope":     view.Scope,
		"agentType": view.AgentType,
	}
	if hasApproval, ok := params["hasApproval"]; ok {
		ctx["hasApproval"] = hasApproval
	}
	return ctx
}
