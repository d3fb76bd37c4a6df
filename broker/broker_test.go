package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/workflow-core/aat"
	"github.com/fluxgraph/workflow-core/broker"
	"github.com/fluxgraph/workflow-core/coreerr"
	"github.com/fluxgraph/workflow-core/coretypes"
	"github.com/fluxgraph/workflow-core/policy"
	"github.com/fluxgraph/workflow-core/provenance/inmem"
)

type staticSource struct {
	affordances []coretypes.Affordance
	constraints []coretypes.Constraint
}

func (s staticSource) AffordancesFor(string) []coretypes.Affordance { return s.affordances }
func (s staticSource) ConstraintsFor(string) []coretypes.Constraint { return s.constraints }
func (s staticSource) ScopeFor(string, coretypes.Credentials) string { return "default" }

func newRegistry(t *testing.T) *aat.Registry {
	t.Helper()
	reg := aat.NewRegistry()
	reg.Add(&aat.AAT{
		ID: "executor",
		ActionSpace: aat.ActionSpace{
			Allowed: []aat.AllowedAction{{Type: "Act"}},
		},
	})
	return reg
}

func newBroker(t *testing.T, source broker.ViewSource) *broker.Broker {
	t.Helper()
	return broker.New(broker.Options{
		AATRegistry: newRegistry(t),
		Policy:      policy.New(nil, nil),
		Traces:      inmem.New(),
		ViewSource:  source,
		Clock:       time.Now,
	})
}

func TestGetContextFiltersByCredentials(t *testing.T) {
	source := staticSource{
		affordances: []coretypes.Affordance{
			{ID: "aff-1", ActionType: "Act", Enabled: true, RequiresCredential: []string{"write"}},
		},
	}
	b := newBroker(t, source)

	view, err := b.GetContext(context.Background(), "did:agent:1", coretypes.Credentials{AgentType: "executor"})
	require.NoError(t, err)
	require.Empty(t, view.Affordances)

	view, err = b.GetContext(context.Background(), "did:agent:1", coretypes.Credentials{AgentType: "executor", Grants: []string{"write"}})
	require.NoError(t, err)
	require.Len(t, view.Affordances, 1)
}

func TestTraverseUnknownContextFails(t *testing.T) {
	b := newBroker(t, staticSource{})
	outcome := b.Traverse(context.Background(), "missing", "aff-1", nil, coretypes.Credentials{})
	require.False(t, outcome.Success)
	require.Error(t, outcome.Err)
}

func TestTraverseRunsEffectHandlerAndStoresTrace(t *testing.T) {
	source := staticSource{
		affordances: []coretypes.Affordance{
			{ID: "aff-1", ActionType: "Act", Enabled: true, RequiresCredential: []string{"write"}},
		},
	}
	b := newBroker(t, source)
	b.RegisterEffectHandler("Act", func(_ context.Context, _ string, _ coretypes.Affordance, _ map[string]any) (broker.EffectResult, error) {
		return broker.EffectResult{ResultType: "ack", Output: map[string]any{"ok": true}}, nil
	})

	creds := coretypes.Credentials{AgentType: "executor", Grants: []string{"write"}}
	view, err := b.GetContext(context.Background(), "did:agent:1", creds)
	require.NoError(t, err)

	outcome := b.Traverse(context.Background(), view.ID, "aff-1", map[string]any{"confirmed": true}, creds)
	require.True(t, outcome.Success)
	require.NotEmpty(t, outcome.TraceID)
	require.Equal(t, true, outcome.Result["ok"])
}

func TestTraverseForbiddenActionDeniesWithAATViolation(t *testing.T) {
	source := staticSource{
		affordances: []coretypes.Affordance{
			{ID: "aff-1", ActionType: "Delete", Enabled: true},
		},
	}
	reg := aat.NewRegistry()
	reg.Add(&aat.AAT{
		ID: "executor",
		ActionSpace: aat.ActionSpace{
			Allowed:   []aat.AllowedAction{{Type: "Delete"}},
			Forbidden: []aat.ForbiddenAction{{Type: "Delete", Rationale: "policy tightened after view issuance"}},
		},
	})
	b := broker.New(broker.Options{
		AATRegistry: reg,
		Policy:      policy.New(nil, nil),
		Traces:      inmem.New(),
		ViewSource:  source,
		Clock:       time.Now,
	})

	creds := coretypes.Credentials{AgentType: "executor"}
	view, err := b.GetContext(context.Background(), "did:agent:1", creds)
	require.NoError(t, err)
	require.Len(t, view.Affordances, 1, "GetContext's own pre-filter only checks IsActionAllowed")

	outcome := b.Traverse(context.Background(), view.ID, "aff-1", map[string]any{"confirmed": true}, creds)
	require.False(t, outcome.Success)
	require.ErrorIs(t, outcome.Err, coreerr.New(coreerr.KindAATViolation, ""))
}

func TestTraverseWithNoEffectHandlerFails(t *testing.T) {
	source := staticSource{
		affordances: []coretypes.Affordance{
			{ID: "aff-1", ActionType: "Act", Enabled: true, RequiresCredential: []string{"write"}},
		},
	}
	b := newBroker(t, source)
	creds := coretypes.Credentials{AgentType: "executor", Grants: []string{"write"}}
	view, err := b.GetContext(context.Background(), "did:agent:1", creds)
	require.NoError(t, err)

	outcome := b.Traverse(context.Background(), view.ID, "aff-1", nil, creds)
	require.False(t, outcome.Success)
	require.Error(t, outcome.Err)
}
