package aat_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/workflow-core/aat"
)

func TestUnknownAATForbidsEverything(t *testing.T) {
	r := aat.NewRegistry()
	require.False(t, r.IsActionAllowed("ghost", "Act"))
	require.True(t, r.IsActionForbidden("ghost", "Act"))
	result := r.ValidateAffordanceForAAT("ghost", "Act")
	require.False(t, result.Valid)
}

func TestBuiltinParallelizationDefaults(t *testing.T) {
	r := aat.NewRegistry()
	r.Add(&aat.AAT{ID: "planner"})
	r.Add(&aat.AAT{ID: "executor"})
	r.Add(&aat.AAT{ID: "arbiter"})

	planner := r.GetParallelizationRules("planner")
	require.Equal(t, 3, planner.MaxConcurrent)
	require.Contains(t, planner.ConflictsWith, "planner")

	executor := r.GetParallelizationRules("executor")
	require.Equal(t, 20, executor.MaxConcurrent)
	require.True(t, executor.RequiresIsolation)

	arbiter := r.GetParallelizationRules("arbiter")
	require.False(t, arbiter.Parallelizable)
	require.Equal(t, 1, arbiter.MaxConcurrent)
}

func TestRequiredOutputActionFromFirstStructuralInvariant(t *testing.T) {
	r := aat.NewRegistry()
	r.Add(&aat.AAT{
		ID: "planner",
		BehavioralInvariants: []aat.BehavioralInvariant{
			{ID: "advisory-1", Enforcement: aat.EnforcementAdvisory, RequiredOutputAction: "Ignored"},
			{ID: "structural-1", Enforcement: aat.EnforcementStructural, RequiredOutputAction: "EmitPlan"},
		},
	})
	require.Equal(t, aat.ActionType("EmitPlan"), r.GetRequiredOutputAction("planner"))
}

func TestLoadDirParsesDeclarativeSpecs(t *testing.T) {
	dir := t.TempDir()
	spec := `
id: planner
actionSpace:
  allowed:
    - type: EmitPlan
  forbidden:
    - type: Act
      rationale: planners never execute directly
behavioralInvariants:
  - id: must-emit-plan
    enforcement: structural
    requiredOutputAction: EmitPlan
parallelization:
  parallelizable: true
  maxConcurrent: 5
  conflictsWith: [planner]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planner.yaml"), []byte(spec), 0o600))

	reg, err := aat.LoadDir(dir)
	require.NoError(t, err)

	got := reg.GetAAT("planner")
	require.NotNil(t, got)
	require.True(t, reg.IsActionAllowed("planner", "EmitPlan"))
	require.True(t, reg.IsActionForbidden("planner", "Act"))
	require.Equal(t, aat.ActionType("EmitPlan"), reg.GetRequiredOutputAction("planner"))
	require.Equal(t, 5, reg.GetParallelizationRules("planner").MaxConcurrent)
}
