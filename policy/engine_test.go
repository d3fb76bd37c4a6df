package policy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/workflow-core/coretypes"
	"github.com/fluxgraph/workflow-core/policy"
)

func viewWithAffordance(a coretypes.Affordance, agentType string) coretypes.ContextView {
	return coretypes.ContextView{
		ID:          "view-1",
		AgentType:   agentType,
		Affordances: []coretypes.Affordance{a},
	}
}

func TestDenyUnconfirmedDestructive(t *testing.T) {
	eng := policy.New(nil, nil)
	view := viewWithAffordance(coretypes.Affordance{
		ID: "aff-1", ActionType: "Delete", Enabled: true,
	}, "executor")

	decision := eng.Evaluate(context.Background(), policy.Input{
		View: view, AffordanceID: "aff-1",
		Parameters: map[string]any{"confirmed": false},
	})
	require.False(t, decision.Allow)
	require.Contains(t, decision.DenyReasons, "deny-unconfirmed-destructive")
}

func TestDenyMissingConfirmedDestructive(t *testing.T) {
	eng := policy.New(nil, nil)
	view := viewWithAffordance(coretypes.Affordance{
		ID: "aff-1", ActionType: "Delete", Enabled: true,
	}, "executor")

	decision := eng.Evaluate(context.Background(), policy.Input{
		View: view, AffordanceID: "aff-1",
		Parameters: map[string]any{},
	})
	require.False(t, decision.Allow)
	require.Contains(t, decision.DenyReasons, "deny-unconfirmed-destructive")
}

func TestAllowConfirmedDestructive(t *testing.T) {
	eng := policy.New(nil, nil)
	view := viewWithAffordance(coretypes.Affordance{
		ID: "aff-1", ActionType: "Delete", Enabled: true,
	}, "executor")

	decision := eng.Evaluate(context.Background(), policy.Input{
		View: view, AffordanceID: "aff-1",
		Parameters: map[string]any{"confirmed": true},
	})
	require.True(t, decision.Allow)
}

func TestDenyProtectedPath(t *testing.T) {
	eng := policy.New(nil, nil)
	view := viewWithAffordance(coretypes.Affordance{
		ID: "aff-1", ActionType: "Act", Target: "/system/config", Enabled: true,
	}, "executor")

	decision := eng.Evaluate(context.Background(), policy.Input{View: view, AffordanceID: "aff-1"})
	require.False(t, decision.Allow)
}

func TestPlannerDeniedExecutorAction(t *testing.T) {
	eng := policy.New(nil, nil)
	view := viewWithAffordance(coretypes.Affordance{
		ID: "aff-1", ActionType: "Act", Target: "/tmp/x", Enabled: true,
	}, "planner")

	decision := eng.Evaluate(context.Background(), policy.Input{View: view, AffordanceID: "aff-1"})
	require.False(t, decision.Allow)
}

func TestMissingAffordanceDenies(t *testing.T) {
	eng := policy.New(nil, nil)
	view := coretypes.ContextView{ID: "v"}
	decision := eng.Evaluate(context.Background(), policy.Input{View: view, AffordanceID: "missing"})
	require.False(t, decision.Allow)
}

func TestDenyRulesDoNotShortCircuit(t *testing.T) {
	eng := policy.New([]policy.Rule{
		{ID: "extra-deny", Name: "extra-deny", Effect: policy.EffectDeny, Priority: 1},
	}, nil)
	view := viewWithAffordance(coretypes.Affordance{
		ID: "aff-1", ActionType: "Delete", Enabled: true,
	}, "executor")

	decision := eng.Evaluate(context.Background(), policy.Input{
		View: view, AffordanceID: "aff-1",
		Parameters: map[string]any{"confirmed": false},
	})
	require.False(t, decision.Allow)
	require.Len(t, decision.DenyReasons, 2)
}

func TestStrictConstraintDenies(t *testing.T) {
	eng := policy.New(nil, []policy.DeonticConstraint{
		{
			ID:               "must-have-session",
			Modality:         policy.ModalityObligation,
			Condition:        policy.Condition{Field: "context.sessionID", Op: policy.OpExists},
			EnforcementLevel: coretypes.EnforcementStrict,
		},
	})
	view := viewWithAffordance(coretypes.Affordance{ID: "aff-1", ActionType: "Observe", Enabled: true}, "observer")
	view.Affordances[0].ActionType = "EmitReport" // avoid observer-mutation builtin rule

	decision := eng.Evaluate(context.Background(), policy.Input{View: view, AffordanceID: "aff-1"})
	require.False(t, decision.Allow)
}

func TestAdvisoryConstraintWarnsWithoutDenying(t *testing.T) {
	eng := policy.New(nil, []policy.DeonticConstraint{
		{
			ID:               "prefer-session",
			Modality:         policy.ModalityObligation,
			Condition:        policy.Condition{Field: "context.sessionID", Op: policy.OpExists},
			EnforcementLevel: coretypes.EnforcementAdvisory,
		},
	})
	view := viewWithAffordance(coretypes.Affordance{ID: "aff-1", ActionType: "EmitReport", Enabled: true}, "observer")

	decision := eng.Evaluate(context.Background(), policy.Input{View: view, AffordanceID: "aff-1"})
	require.True(t, decision.Allow)
	require.NotEmpty(t, decision.Warnings)
}
