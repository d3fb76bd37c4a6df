package coretypes

import "time"

// TaskType names the archetype-routed kind of work a Task represents. Each
// type routes to exactly one AAT archetype (spec.md §4.6 "nextTask"):
// plan→planner, execute→executor, observe→observer, approve→arbiter,
// archive→archivist, analyze→analyst.
type TaskType string

const (
	TaskPlan    TaskType = "plan"
	TaskApprove TaskType = "approve"
	TaskExecute TaskType = "execute"
	TaskObserve TaskType = "observe"
	TaskArchive TaskType = "archive"
	TaskAnalyze TaskType = "analyze"
)

// Archetype returns the AAT archetype this task type routes to.
func (t TaskType) Archetype() string {
	switch t {
	case TaskPlan:
		return "planner"
	case TaskApprove:
		return "arbiter"
	case TaskExecute:
		return "executor"
	case TaskObserve:
		return "observer"
	case TaskArchive:
		return "archivist"
	case TaskAnalyze:
		return "analyst"
	default:
		return ""
	}
}

// TaskStatus is the lifecycle state of a Task. Transitions are one-way:
// queued → ready → assigned → running → terminal (completed/failed/
// cancelled); assigned → running → terminal is irreversible (spec.md §3).
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskReady     TaskStatus = "ready"
	TaskAssigned  TaskStatus = "assigned"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether status is one from which a task never
// transitions further.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Task is one node of a Workflow's dependency graph.
type Task struct {
	ID              string
	WorkflowID      string
	Type            TaskType
	Priority        int
	Status          TaskStatus
	Dependencies    []string
	Input           map[string]any
	Output          map[string]any
	AssignedAgentID string
	StepNumber      int
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Ready reports whether every dependency in completed has completed,
// i.e. whether the task may transition from queued to ready (spec.md §3
// invariant (a)).
func (t *Task) Ready(completed map[string]bool) bool {
	for _, dep := range t.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}
