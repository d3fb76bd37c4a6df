package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/workflow-core/aat"
	"github.com/fluxgraph/workflow-core/coretypes"
)

func TestTaskQueueRefreshReadyRespectsDependencies(t *testing.T) {
	q := NewTaskQueue()
	q.Enqueue(coretypes.Task{ID: "a", Status: coretypes.TaskReady})
	q.Enqueue(coretypes.Task{ID: "b", Status: coretypes.TaskQueued, Dependencies: []string{"a"}})

	q.RefreshReady()

	b, _ := q.Get("b")
	require.Equal(t, coretypes.TaskQueued, b.Status, "b must stay queued until a completes")

	q.SetStatus("a", coretypes.TaskCompleted)
	q.RefreshReady()
	b, _ = q.Get("b")
	require.Equal(t, coretypes.TaskReady, b.Status, "P-Dependency: b becomes ready once its dependency completes")
}

func TestNextReadyForOrdersByPriority(t *testing.T) {
	q := NewTaskQueue()
	q.Enqueue(coretypes.Task{ID: "low", Type: coretypes.TaskExecute, Status: coretypes.TaskReady, Priority: 1})
	q.Enqueue(coretypes.Task{ID: "high", Type: coretypes.TaskExecute, Status: coretypes.TaskReady, Priority: 9})

	task, ok := q.NextReadyFor("executor")
	require.True(t, ok)
	require.Equal(t, "high", task.ID)
}

func TestPoolEnforcesConcurrencyLimit(t *testing.T) {
	policy := DefaultConcurrencyPolicy()
	o := New(Options{Policy: policy})

	for i := 0; i < policy.MaxPerType["archivist"]; i++ {
		ok, _ := o.canSpawn("archivist")
		require.True(t, ok)
		o.pool.Acquire("archivist")
	}

	ok, reason := o.canSpawn("archivist")
	require.False(t, ok, "P-Concurrency: active(archivist) must not exceed policy.maxPerType[archivist]")
	require.Equal(t, "concurrency-limited", reason)
}

func TestConflictMatrixBlocksConflictingArchetype(t *testing.T) {
	policy := DefaultConcurrencyPolicy()
	o := New(Options{Policy: policy})

	o.pool.Acquire("arbiter")
	ok, reason := o.canSpawn("arbiter")
	require.False(t, ok, "P-Conflict: active(arbiter) > 0 must block a second arbiter")
	require.Equal(t, "concurrency-limited", reason)
}

func TestAATConflictsWithBlocksEvenWithoutPolicyConflictMatrix(t *testing.T) {
	reg := aat.NewRegistry()
	reg.Add(&aat.AAT{
		ID: "archivist",
		Parallelization: &aat.ParallelizationRules{
			Parallelizable: true,
			MaxConcurrent:  2,
			ConflictsWith:  []string{"analyst"},
		},
	})
	reg.Add(&aat.AAT{
		ID: "analyst",
		Parallelization: &aat.ParallelizationRules{
			Parallelizable: true,
			MaxConcurrent:  3,
		},
	})

	// An empty conflict matrix: this installation only declares conflicts
	// at the AAT level (spec.md §3's canonical home), not in policy config.
	policy := ConcurrencyPolicy{MaxTotalAgents: 10, MaxPerType: map[string]int{"archivist": 2, "analyst": 3}}
	o := New(Options{Policy: policy, AATs: reg})

	o.pool.Acquire("analyst")
	ok, reason := o.canSpawn("archivist")
	require.False(t, ok, "P-Conflict: AAT-declared ConflictsWith must be enforced even with no policy.conflictMatrix entry")
	require.Equal(t, "concurrency-limited", reason)
}

func TestExpandPlanParallelModeDependsOnlyOnPlanTask(t *testing.T) {
	q := NewTaskQueue()
	plan := Plan{
		Goal:  map[string]any{"id": "g1"},
		Steps: []PlanStep{{Action: "a1"}, {Action: "a2"}},
	}

	generated := ExpandPlan(q, "wf1", "plan-task", plan, coretypes.GoalOptions{EnableParallelExecution: true})
	require.Len(t, generated, 3) // 2 executes + 1 archive

	for _, id := range generated[:2] {
		task, ok := q.Get(id)
		require.True(t, ok)
		require.Equal(t, coretypes.TaskExecute, task.Type)
		require.Equal(t, []string{"plan-task"}, task.Dependencies)
	}

	archive, ok := q.Get(generated[2])
	require.True(t, ok)
	require.Equal(t, coretypes.TaskArchive, archive.Type)
	require.ElementsMatch(t, generated[:2], archive.Dependencies)
}

func TestExpandPlanSequentialModeChainsApproveExecuteObserve(t *testing.T) {
	q := NewTaskQueue()
	plan := Plan{Steps: []PlanStep{{Action: "a1"}, {Action: "a2"}}}

	generated := ExpandPlan(q, "wf1", "plan-task", plan, coretypes.GoalOptions{EnableParallelExecution: false})
	require.Len(t, generated, 7) // (approve, execute, observe) x2 + archive

	approve1, _ := q.Get(generated[0])
	require.Equal(t, coretypes.TaskApprove, approve1.Type)
	require.Equal(t, []string{"plan-task"}, approve1.Dependencies)

	execute1, _ := q.Get(generated[1])
	require.Equal(t, coretypes.TaskExecute, execute1.Type)
	require.Equal(t, []string{approve1.ID}, execute1.Dependencies)
	require.Equal(t, "a1", execute1.Input["target"])

	observe1, _ := q.Get(generated[2])
	require.Equal(t, coretypes.TaskObserve, observe1.Type)
	require.Equal(t, []string{execute1.ID}, observe1.Dependencies)

	approve2, _ := q.Get(generated[3])
	require.Equal(t, []string{observe1.ID}, approve2.Dependencies, "step 2's approve depends on step 1's observe")

	archive, _ := q.Get(generated[6])
	require.Equal(t, coretypes.TaskArchive, archive.Type)
	require.Equal(t, "trace", archive.Input["contentType"])
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := NewInmemCheckpointStore()
	ctx := context.Background()

	created, err := store.Create(ctx, Checkpoint{
		WorkflowID:       "wf1",
		CompletedTaskIDs: []string{"t1"},
		Goal:             map[string]any{"id": "g1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.NotEmpty(t, created.Hash)

	resumed, err := store.Resume(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, resumed.ID)
	require.Equal(t, []string{"t1"}, resumed.CompletedTaskIDs)

	_, err = store.Resume(ctx, "does-not-exist")
	require.ErrorIs(t, err, ErrCheckpointNotFound)
}

func TestCheckpointPruneKeepsLatestN(t *testing.T) {
	store := NewInmemCheckpointStore()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		cp, err := store.Create(ctx, Checkpoint{WorkflowID: "wf1", CompletedTaskIDs: []string{string(rune('a' + i))}})
		require.NoError(t, err)
		ids = append(ids, cp.ID)
	}

	require.NoError(t, store.PruneKeepLatest(ctx, "wf1", 2))

	for _, id := range ids[:3] {
		_, err := store.Resume(ctx, id)
		require.ErrorIs(t, err, ErrCheckpointNotFound)
	}
	for _, id := range ids[3:] {
		_, err := store.Resume(ctx, id)
		require.NoError(t, err)
	}
}

func TestSubmitBuildsWorkflowWithReadyPlanTask(t *testing.T) {
	o := New(Options{Policy: DefaultConcurrencyPolicy()})
	wf := o.Submit(coretypes.Goal{ID: "g1", Description: "do the thing"})

	require.Len(t, wf.TaskIDs, 1)
	planTask, ok := o.Queue().Get(wf.TaskIDs[0])
	require.True(t, ok)
	require.Equal(t, coretypes.TaskPlan, planTask.Type)
	require.Equal(t, coretypes.TaskReady, planTask.Status)

	got, ok := o.Workflow(wf.ID)
	require.True(t, ok)
	require.Equal(t, coretypes.WorkflowPlanning, got.Status)
}
