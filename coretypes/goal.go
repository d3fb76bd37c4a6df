// Package coretypes holds the data model shared across the workflow
// engine's components (spec.md §3): goals, workflows, tasks, ContextViews,
// affordances, and agent pool entries. Keeping these in one leaf package
// avoids import cycles between the Context Broker, Agent Runtime, and
// Concurrent Orchestrator, which all reference the same shapes.
package coretypes

import "time"

// Goal is submitted by a client and owned by exactly one Workflow. Once
// submitted it is immutable; the Orchestrator never mutates a Goal.
type Goal struct {
	ID          string
	Description string
	Constraints map[string]any
	Priority    int
	Options     GoalOptions
}

// GoalOptions controls how the Orchestrator expands a Goal's plan into a
// task DAG (spec.md §4.6 "Plan expansion").
type GoalOptions struct {
	// EnableParallelExecution selects the Parallel plan-expansion mode
	// (every step's execute task depends only on the plan task) over the
	// Sequential mode (approve → execute → observe chained per step).
	EnableParallelExecution bool
	// Labels carries caller-provided metadata threaded through to tasks
	// and traces (tenant, priority class, etc.).
	Labels map[string]string
}

// WorkflowStatus is the coarse lifecycle state of a Workflow.
type WorkflowStatus string

const (
	WorkflowPlanning         WorkflowStatus = "planning"
	WorkflowAwaitingApproval WorkflowStatus = "awaiting-approval"
	WorkflowExecuting        WorkflowStatus = "executing"
	WorkflowCompleted        WorkflowStatus = "completed"
	WorkflowFailed           WorkflowStatus = "failed"
)

// Workflow is the goal-rooted task DAG managed by the Orchestrator. A
// workflow terminates in Completed iff every task reached Completed, and
// in Failed if any task reached Failed and was not covered by a retry.
type Workflow struct {
	ID          string
	Goal        Goal
	Status      WorkflowStatus
	TaskIDs     []string
	Checkpoints []string
	CreatedAt   time.Time
	Options     GoalOptions
}
