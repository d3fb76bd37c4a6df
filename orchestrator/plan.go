package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/fluxgraph/workflow-core/coretypes"
	"github.com/fluxgraph/workflow-core/ids"
)

// PlanStep is one step of a completed plan task's output.
type PlanStep struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Plan is the {goal, steps[]} shape a plan task produces on completion
// (spec.md §4.6 "Plan expansion").
type Plan struct {
	Goal  map[string]any `json:"goal"`
	Steps []PlanStep     `json:"steps"`
}

// ExpandPlan builds the execute-phase DAG for workflowID from a completed
// plan task, in either Parallel or Sequential mode, and enqueues every
// generated task onto q. It returns the generated tasks' IDs in dependency
// order (steps first, archive last).
func ExpandPlan(q *TaskQueue, workflowID, planTaskID string, plan Plan, opts coretypes.GoalOptions) []string {
	if opts.EnableParallelExecution {
		return expandParallel(q, workflowID, planTaskID, plan)
	}
	return expandSequential(q, workflowID, planTaskID, plan)
}

func expandParallel(q *TaskQueue, workflowID, planTaskID string, plan Plan) []string {
	var generated []string
	var executeIDs []string
	for i, step := range plan.Steps {
		id := ids.NewPrefixed("task")
		q.Enqueue(coretypes.Task{
			ID:           id,
			WorkflowID:   workflowID,
			Type:         coretypes.TaskExecute,
			Status:       coretypes.TaskQueued,
			Dependencies: []string{planTaskID},
			StepNumber:   i,
			Input:        executeInput(step, plan, planTaskID),
			CreatedAt:    time.Time{},
		})
		generated = append(generated, id)
		executeIDs = append(executeIDs, id)
	}

	archiveID := ids.NewPrefixed("task")
	q.Enqueue(coretypes.Task{
		ID:           archiveID,
		WorkflowID:   workflowID,
		Type:         coretypes.TaskArchive,
		Status:       coretypes.TaskQueued,
		Dependencies: executeIDs,
		Input:        archiveInput(plan),
	})
	generated = append(generated, archiveID)
	return generated
}

func expandSequential(q *TaskQueue, workflowID, planTaskID string, plan Plan) []string {
	var generated []string
	prev := planTaskID
	for i, step := range plan.Steps {
		approveID := ids.NewPrefixed("task")
		q.Enqueue(coretypes.Task{
			ID:           approveID,
			WorkflowID:   workflowID,
			Type:         coretypes.TaskApprove,
			Status:       coretypes.TaskQueued,
			Dependencies: []string{prev},
			StepNumber:   i,
			Input:        map[string]any{"step": step, "plan": plan},
		})

		executeID := ids.NewPrefixed("task")
		q.Enqueue(coretypes.Task{
			ID:           executeID,
			WorkflowID:   workflowID,
			Type:         coretypes.TaskExecute,
			Status:       coretypes.TaskQueued,
			Dependencies: []string{approveID},
			StepNumber:   i,
			Input:        executeInput(step, plan, approveID),
		})

		observeID := ids.NewPrefixed("task")
		q.Enqueue(coretypes.Task{
			ID:           observeID,
			WorkflowID:   workflowID,
			Type:         coretypes.TaskObserve,
			Status:       coretypes.TaskQueued,
			Dependencies: []string{executeID},
			StepNumber:   i,
			Input:        map[string]any{"step": step, "executeTaskID": executeID},
		})

		generated = append(generated, approveID, executeID, observeID)
		prev = observeID
	}

	archiveID := ids.NewPrefixed("task")
	q.Enqueue(coretypes.Task{
		ID:           archiveID,
		WorkflowID:   workflowID,
		Type:         coretypes.TaskArchive,
		Status:       coretypes.TaskQueued,
		Dependencies: []string{prev},
		Input:        archiveInput(plan),
	})
	generated = append(generated, archiveID)
	return generated
}

func executeInput(step PlanStep, plan Plan, actionRef string) map[string]any {
	return map[string]any{
		"step":      step,
		"plan":      plan,
		"actionRef": actionRef,
		"target":    step.Action,
	}
}

func archiveInput(plan Plan) map[string]any {
	content, _ := json.Marshal(struct {
		Goal        map[string]any `json:"goal"`
		Plan        Plan           `json:"plan"`
		CompletedAt time.Time      `json:"completedAt"`
	}{plan.Goal, plan, time.Now()})
	return map[string]any{
		"content":     string(content),
		"contentType": "trace",
	}
}
