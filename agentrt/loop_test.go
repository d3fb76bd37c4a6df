package agentrt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/workflow-core/agentrt"
	"github.com/fluxgraph/workflow-core/broker"
	"github.com/fluxgraph/workflow-core/coreerr"
	"github.com/fluxgraph/workflow-core/coretypes"
)

type stubBroker struct {
	view      coretypes.ContextView
	traverses []broker.TraverseOutcome
	calls     int
}

func (s *stubBroker) GetContext(context.Context, string, coretypes.Credentials) (coretypes.ContextView, error) {
	return s.view, nil
}

func (s *stubBroker) Traverse(context.Context, string, string, map[string]any, coretypes.Credentials) broker.TraverseOutcome {
	out := s.traverses[s.calls]
	s.calls++
	return out
}

type stubReasoner struct {
	decisions []agentrt.Decision
	calls     int
}

func (s *stubReasoner) ReasonAboutContext(context.Context, string, coretypes.ContextView, coretypes.Task, []agentrt.ActionRecord) (agentrt.Decision, error) {
	d := s.decisions[s.calls]
	s.calls++
	return d, nil
}

func TestArchivistShortcutStoresWithoutReasoner(t *testing.T) {
	view := coretypes.ContextView{
		ID: "view-1",
		Affordances: []coretypes.Affordance{
			{ID: "aff-store", ActionType: "Store", Enabled: true},
		},
	}
	b := &stubBroker{view: view, traverses: []broker.TraverseOutcome{
		{Success: true, TraceID: "t-1", Result: map[string]any{"ref": "blob-1"}},
	}}
	rt := agentrt.New(agentrt.Options{Broker: b, MaxIterations: 3})

	task := coretypes.Task{
		ID:   "task-1",
		Type: coretypes.TaskArchive,
		Input: map[string]any{
			"content":     "payload",
			"contentType": "trace",
		},
	}
	result := rt.Run(context.Background(), task)
	require.Equal(t, "completed", result.Status)
	require.Equal(t, 0, 0) // reasoner never consulted; nothing to assert on stub
}

func TestReasonerDecisionTraversedAndProjected(t *testing.T) {
	view := coretypes.ContextView{
		ID: "view-1",
		Affordances: []coretypes.Affordance{
			{ID: "aff-act", ActionType: "Act", Enabled: true},
		},
	}
	b := &stubBroker{view: view, traverses: []broker.TraverseOutcome{
		{Success: true, TraceID: "t-1", Result: map[string]any{"done": true}},
	}}
	reasoner := &stubReasoner{decisions: []agentrt.Decision{
		{SelectedAffordanceID: "aff-act", ShouldContinue: true, Parameters: map[string]any{}},
		{ShouldContinue: false},
	}}
	rt := agentrt.New(agentrt.Options{Broker: b, Reasoner: reasoner, MaxIterations: 5})

	task := coretypes.Task{ID: "task-2", Type: coretypes.TaskExecute}
	result := rt.Run(context.Background(), task)
	require.Equal(t, "completed", result.Status)
	require.Len(t, result.History, 1)
	require.True(t, result.History[0].Success)
}

func TestStructuralRequirementMissingFromViewFailsInsteadOfCompleting(t *testing.T) {
	view := coretypes.ContextView{
		ID:             "view-1",
		StructuralReqs: &coretypes.StructuralRequirements{RequiredOutputAction: "EmitPlan"},
		Affordances: []coretypes.Affordance{
			{ID: "aff-act", ActionType: "Act", Enabled: true},
		},
	}
	b := &stubBroker{view: view}
	reasoner := &stubReasoner{decisions: []agentrt.Decision{
		{ShouldContinue: false, Reasoning: "nothing left to do"},
	}}
	rt := agentrt.New(agentrt.Options{Broker: b, Reasoner: reasoner, MaxIterations: 3})

	task := coretypes.Task{ID: "task-4", Type: coretypes.TaskPlan}
	result := rt.Run(context.Background(), task)
	require.Equal(t, "failed", result.Status, "P-Structural: a run must not report success without traversing its required output action")
	require.ErrorIs(t, result.Err, coreerr.New(coreerr.KindStructuralMissingRequiredOutput, ""))
}

func TestStructuralEnforcementSynthesizesGoalAndSteps(t *testing.T) {
	view := coretypes.ContextView{
		ID:             "view-1",
		StructuralReqs: &coretypes.StructuralRequirements{RequiredOutputAction: "EmitPlan"},
		Affordances: []coretypes.Affordance{
			{ID: "aff-plan", ActionType: "EmitPlan", Enabled: true},
		},
	}
	b := &stubBroker{view: view, traverses: []broker.TraverseOutcome{
		{Success: true, TraceID: "t-1", Result: map[string]any{}},
	}}
	reasoner := &stubReasoner{decisions: []agentrt.Decision{
		{ShouldContinue: false, Reasoning: "1) do A\n2) do B"},
	}}
	rt := agentrt.New(agentrt.Options{Broker: b, Reasoner: reasoner, MaxIterations: 3})

	task := coretypes.Task{
		ID:    "task-5",
		Type:  coretypes.TaskPlan,
		Input: map[string]any{"goal": map[string]any{"id": "g1", "description": "ship it"}},
	}
	result := rt.Run(context.Background(), task)
	require.Equal(t, "completed", result.Status)
	require.Len(t, result.History, 1)
	require.Equal(t, "EmitPlan", result.History[0].ActionType)
	require.Equal(t, task.Input["goal"], result.History[0].Parameters["goal"])
	require.NotEmpty(t, result.History[0].Parameters["steps"])
}

func TestMaxIterationsReachedFails(t *testing.T) {
	view := coretypes.ContextView{
		ID: "view-1",
		Affordances: []coretypes.Affordance{
			{ID: "aff-act", ActionType: "Act", Enabled: true},
		},
	}
	traverses := make([]broker.TraverseOutcome, 0, 3)
	decisions := make([]agentrt.Decision, 0, 3)
	for i := 0; i < 3; i++ {
		traverses = append(traverses, broker.TraverseOutcome{Success: true, TraceID: "t", Result: map[string]any{}})
		decisions = append(decisions, agentrt.Decision{SelectedAffordanceID: "aff-act", ShouldContinue: true, Parameters: map[string]any{}})
	}
	b := &stubBroker{view: view, traverses: traverses}
	reasoner := &stubReasoner{decisions: decisions}
	rt := agentrt.New(agentrt.Options{Broker: b, Reasoner: reasoner, MaxIterations: 3})

	task := coretypes.Task{ID: "task-3", Type: coretypes.TaskExecute}
	result := rt.Run(context.Background(), task)
	require.Equal(t, "failed", result.Status)
	require.Error(t, result.Err)
}
