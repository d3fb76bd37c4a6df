package orchestrator

import (
	"sort"
	"sync"

	"github.com/fluxgraph/workflow-core/coretypes"
)

// TaskQueue is the Orchestrator's multi-priority queue: a single writer per
// enqueue, arbitrated by priority for readers (spec.md §5 "Shared-resource
// policy").
type TaskQueue struct {
	mu    sync.Mutex
	tasks map[string]*coretypes.Task
}

// NewTaskQueue returns an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{tasks: make(map[string]*coretypes.Task)}
}

// Enqueue adds or replaces a task.
func (q *TaskQueue) Enqueue(task coretypes.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := task
	q.tasks[t.ID] = &t
}

// Get returns a copy of a task by ID.
func (q *TaskQueue) Get(id string) (coretypes.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return coretypes.Task{}, false
	}
	return *t, true
}

// SetStatus updates a task's status in place.
func (q *TaskQueue) SetStatus(id string, status coretypes.TaskStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.tasks[id]; ok {
		t.Status = status
	}
}

// SetOutput records a completed task's output.
func (q *TaskQueue) SetOutput(id string, output map[string]any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.tasks[id]; ok {
		t.Output = output
	}
}

// RefreshReady promotes every queued task whose dependencies are all
// completed to ready (spec.md §3 invariant (a)).
func (q *TaskQueue) RefreshReady() {
	q.mu.Lock()
	defer q.mu.Unlock()
	completed := make(map[string]bool)
	for _, t := range q.tasks {
		if t.Status == coretypes.TaskCompleted {
			completed[t.ID] = true
		}
	}
	for _, t := range q.tasks {
		if t.Status == coretypes.TaskQueued && t.Ready(completed) {
			t.Status = coretypes.TaskReady
		}
	}
}

// NextReadyFor returns the highest-priority ready task whose type routes to
// archetype, or false if none is available (spec.md §4.6 "nextTask").
func (q *TaskQueue) NextReadyFor(archetype string) (coretypes.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var candidates []*coretypes.Task
	for _, t := range q.tasks {
		if t.Status == coretypes.TaskReady && t.Type.Archetype() == archetype {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return coretypes.Task{}, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Priority > candidates[j].Priority })
	return *candidates[0], true
}

// ByWorkflow returns every task belonging to workflowID.
func (q *TaskQueue) ByWorkflow(workflowID string) []coretypes.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []coretypes.Task
	for _, t := range q.tasks {
		if t.WorkflowID == workflowID {
			out = append(out, *t)
		}
	}
	return out
}
