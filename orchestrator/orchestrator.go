package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluxgraph/workflow-core/aat"
	"github.com/fluxgraph/workflow-core/agentrt"
	"github.com/fluxgraph/workflow-core/coretypes"
	"github.com/fluxgraph/workflow-core/enclave"
	"github.com/fluxgraph/workflow-core/engine"
	"github.com/fluxgraph/workflow-core/ids"
	"github.com/fluxgraph/workflow-core/resource"
	"github.com/fluxgraph/workflow-core/telemetry"
)

// RuntimeFactory builds the Agent Runtime that should execute a task
// assigned to agentID of archetype aatID. Callers typically close over a
// shared Broker, Reasoner pool, and Credentials store.
type RuntimeFactory func(agentID, aatID string) *agentrt.Runtime

// Options configures an Orchestrator.
type Options struct {
	Policy          ConcurrencyPolicy
	AATs            *aat.Registry
	Runtimes        RuntimeFactory
	Engine          engine.Engine
	Limiter         resource.Limiter
	Checkpoints     CheckpointStore
	Enclaves        enclave.Service
	Logger          telemetry.Logger
	Tracer          telemetry.Tracer
	CleanupInterval time.Duration
}

// Orchestrator is the Concurrent Orchestrator of spec.md §4.6: it owns the
// task queue and agent pool for every workflow in flight and drives the
// 5-step scheduling tick.
type Orchestrator struct {
	mu        sync.Mutex
	queue     *TaskQueue
	pool      *Pool
	policy    ConcurrencyPolicy
	aats      *aat.Registry
	runtimes  RuntimeFactory
	eng       engine.Engine
	limiter   resource.Limiter
	checks    CheckpointStore
	enclaves  enclave.Service
	logger    telemetry.Logger
	tracer    telemetry.Tracer
	workflows map[string]*coretypes.Workflow

	cleanupInterval time.Duration
	lastCleanup     time.Time

	// lastRejectReason records, per archetype, the reason the most recent
	// dispatch attempt for that archetype was rejected, for observability.
	lastRejectReason map[string]string
}

const defaultCleanupInterval = 5 * time.Minute

// New builds an Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	interval := opts.CleanupInterval
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &Orchestrator{
		queue:            NewTaskQueue(),
		pool:             NewPool(),
		policy:           opts.Policy,
		aats:             opts.AATs,
		runtimes:         opts.Runtimes,
		eng:              opts.Engine,
		limiter:          opts.Limiter,
		checks:           opts.Checkpoints,
		enclaves:         opts.Enclaves,
		logger:           logger,
		tracer:           tracer,
		workflows:        make(map[string]*coretypes.Workflow),
		cleanupInterval:  interval,
		lastRejectReason: make(map[string]string),
	}
}

// Submit registers a new Goal as a Workflow rooted at a single plan task and
// enqueues that task.
func (o *Orchestrator) Submit(goal coretypes.Goal) *coretypes.Workflow {
	o.mu.Lock()
	defer o.mu.Unlock()

	wf := &coretypes.Workflow{
		ID:      ids.NewPrefixed("workflow"),
		Goal:    goal,
		Status:  coretypes.WorkflowPlanning,
		Options: goal.Options,
	}
	planTaskID := ids.NewPrefixed("task")
	o.queue.Enqueue(coretypes.Task{
		ID:         planTaskID,
		WorkflowID: wf.ID,
		Type:       coretypes.TaskPlan,
		Status:     coretypes.TaskReady,
		Priority:   goal.Priority,
		Input:      map[string]any{"goal": goal},
	})
	wf.TaskIDs = append(wf.TaskIDs, planTaskID)
	o.workflows[wf.ID] = wf
	return wf
}

// Workflow returns a copy of a tracked workflow.
func (o *Orchestrator) Workflow(id string) (coretypes.Workflow, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	wf, ok := o.workflows[id]
	if !ok {
		return coretypes.Workflow{}, false
	}
	return *wf, true
}

// Tick performs one scheduling pass: the resource gate, a dispatch attempt
// per archetype, a completion sweep, and (on interval) enclave cleanup
// (spec.md §4.6).
func (o *Orchestrator) Tick(ctx context.Context) {
	o.queue.RefreshReady()

	headroom := o.resourceHeadroom()
	if !headroom {
		o.logger.Info(ctx, "resource-limit-reached")
	} else {
		for archetype := range o.policy.MaxPerType {
			o.dispatchOneFor(ctx, archetype)
		}
	}

	o.sweepCompletions(ctx)
	o.maybeCleanupEnclaves(ctx)
}

// resourceHeadroom reports whether the configured resource limits still
// leave room to dispatch. Without a Limiter configured, the orchestrator
// relies solely on the concurrency policy's per-type/global caps.
func (o *Orchestrator) resourceHeadroom() bool {
	if o.limiter == nil {
		return true
	}
	res, err := o.limiter.Acquire(context.Background(), 0)
	if err != nil {
		return false
	}
	res.Release(0, 0)
	return true
}

// canSpawn reports whether the policy allows one more agent of archetype
// aatID to be spawned right now: below the global cap, below the per-type
// cap, and none of its declared conflicts are currently active.
func (o *Orchestrator) canSpawn(aatID string) (bool, string) {
	if o.pool.TotalActive() >= o.policy.MaxTotalAgents {
		return false, "concurrency-limited"
	}

	limit := o.policy.MaxPerType[aatID]
	if o.aats != nil {
		rules := o.aats.GetParallelizationRules(aatID)
		if !rules.Parallelizable && rules.MaxConcurrent <= 0 {
			rules.MaxConcurrent = 1
		}
		if rules.MaxConcurrent > 0 && (limit == 0 || rules.MaxConcurrent < limit) {
			limit = rules.MaxConcurrent
		}
		for _, conflict := range rules.ConflictsWith {
			if o.pool.ActiveCount(conflict) > 0 {
				return false, "concurrency-limited"
			}
		}
	}
	if limit > 0 && o.pool.ActiveCount(aatID) >= limit {
		return false, "concurrency-limited"
	}
	for _, conflict := range o.policy.ConflictMatrix[aatID] {
		if o.pool.ActiveCount(conflict) > 0 {
			return false, "concurrency-limited"
		}
	}
	for other, conflicts := range o.policy.ConflictMatrix {
		for _, c := range conflicts {
			if c == aatID && o.pool.ActiveCount(other) > 0 {
				return false, "concurrency-limited"
			}
		}
	}
	return true, ""
}

// dispatchOneFor attempts to dispatch a single ready task for archetype,
// recording the rejection reason when it cannot.
func (o *Orchestrator) dispatchOneFor(ctx context.Context, archetype string) {
	task, ok := o.queue.NextReadyFor(archetype)
	if !ok {
		return
	}
	if ok, reason := o.canSpawn(archetype); !ok {
		o.mu.Lock()
		o.lastRejectReason[archetype] = reason
		o.mu.Unlock()
		return
	}

	agentID := o.pool.Acquire(archetype)
	o.queue.SetStatus(task.ID, coretypes.TaskAssigned)
	o.runTask(ctx, agentID, archetype, task)
}

// runTask executes task on agentID, releasing the agent and recording the
// outcome once it terminates. It is non-blocking: the run happens via the
// configured Engine when one is set, or in a detached goroutine otherwise.
func (o *Orchestrator) runTask(ctx context.Context, agentID, archetype string, task coretypes.Task) {
	exec := func() {
		defer o.pool.Release(agentID)
		if o.runtimes == nil {
			o.queue.SetStatus(task.ID, coretypes.TaskFailed)
			return
		}
		rt := o.runtimes(agentID, archetype)
		o.queue.SetStatus(task.ID, coretypes.TaskRunning)
		result := rt.Run(ctx, task)
		switch result.Status {
		case "completed":
			o.queue.SetOutput(task.ID, result.Output)
			o.queue.SetStatus(task.ID, coretypes.TaskCompleted)
			if task.Type == coretypes.TaskPlan {
				o.onPlanCompleted(task)
			}
		case "waiting":
			o.queue.SetStatus(task.ID, coretypes.TaskReady)
		default:
			o.queue.SetStatus(task.ID, coretypes.TaskFailed)
		}
	}

	if o.eng == nil {
		go exec()
		return
	}

	runName := "orchestrator.task." + archetype
	_ = o.eng.RegisterRun(ctx, engine.RunDefinition{
		Name: runName,
		Handler: func(_ engine.RunContext, input any) (any, error) {
			if run, ok := input.(func()); ok {
				run()
			}
			return nil, nil
		},
	})
	_, _ = o.eng.StartRun(ctx, engine.StartRunRequest{
		ID:    ids.NewPrefixed("run"),
		Run:   runName,
		Input: exec,
	})
}

// onPlanCompleted expands the completed plan task's output into the
// execute-phase DAG and enqueues it.
func (o *Orchestrator) onPlanCompleted(planTask coretypes.Task) {
	o.mu.Lock()
	wf, ok := o.workflows[planTask.WorkflowID]
	o.mu.Unlock()
	if !ok {
		return
	}

	// The planner's output is stored on the queued task, wrapped under "plan".
	output := planTask.Output
	if stored, ok := o.queue.Get(planTask.ID); ok {
		output = stored.Output
	}
	if nested, ok := output["plan"].(map[string]any); ok {
		output = nested
	}

	var plan Plan
	if goalVal, ok := output["goal"]; ok {
		if m, ok := goalVal.(map[string]any); ok {
			plan.Goal = m
		}
	}
	if stepsVal, ok := output["steps"]; ok {
		if steps, ok := stepsVal.([]PlanStep); ok {
			plan.Steps = steps
		}
		if steps, ok := stepsVal.([]map[string]any); ok {
			for _, s := range steps {
				action, _ := s["action"].(string)
				plan.Steps = append(plan.Steps, PlanStep{Action: action})
			}
		}
	}

	generated := ExpandPlan(o.queue, wf.ID, planTask.ID, plan, wf.Options)

	o.mu.Lock()
	wf.TaskIDs = append(wf.TaskIDs, generated...)
	wf.Status = coretypes.WorkflowExecuting
	o.mu.Unlock()
}

// sweepCompletions marks every tracked workflow completed or failed once
// its tasks reach a terminal state.
func (o *Orchestrator) sweepCompletions(ctx context.Context) {
	o.mu.Lock()
	workflows := make([]*coretypes.Workflow, 0, len(o.workflows))
	for _, wf := range o.workflows {
		workflows = append(workflows, wf)
	}
	o.mu.Unlock()

	for _, wf := range workflows {
		if wf.Status == coretypes.WorkflowCompleted || wf.Status == coretypes.WorkflowFailed {
			continue
		}
		tasks := o.queue.ByWorkflow(wf.ID)
		if len(tasks) == 0 {
			continue
		}
		allTerminal := true
		anyFailed := false
		allCompleted := true
		for _, t := range tasks {
			if !t.Status.Terminal() {
				allTerminal = false
			}
			if t.Status == coretypes.TaskFailed {
				anyFailed = true
			}
			if t.Status != coretypes.TaskCompleted {
				allCompleted = false
			}
		}
		if !allTerminal {
			continue
		}
		o.mu.Lock()
		if anyFailed {
			wf.Status = coretypes.WorkflowFailed
		} else if allCompleted {
			wf.Status = coretypes.WorkflowCompleted
		}
		o.mu.Unlock()

		if o.checks != nil {
			o.snapshot(ctx, wf, tasks)
		}
	}
}

// snapshot records a checkpoint for wf's current state (spec.md §4.6
// "Checkpointing").
func (o *Orchestrator) snapshot(ctx context.Context, wf *coretypes.Workflow, tasks []coretypes.Task) {
	var queued, completed []string
	for _, t := range tasks {
		switch t.Status {
		case coretypes.TaskCompleted:
			completed = append(completed, t.ID)
		case coretypes.TaskQueued, coretypes.TaskReady, coretypes.TaskAssigned:
			queued = append(queued, t.ID)
		}
	}
	goalMap := map[string]any{
		"id":          wf.Goal.ID,
		"description": wf.Goal.Description,
	}
	_, err := o.checks.Create(ctx, Checkpoint{
		WorkflowID:       wf.ID,
		QueuedTaskIDs:    queued,
		CompletedTaskIDs: completed,
		Goal:             goalMap,
	})
	if err != nil {
		o.logger.Warn(ctx, "checkpoint create failed", "workflowId", wf.ID, "err", err)
		return
	}
	_ = o.checks.PruneKeepLatest(ctx, wf.ID, 5)
}

// maybeCleanupEnclaves runs enclave.Service.CleanupExpired once per
// cleanupInterval.
func (o *Orchestrator) maybeCleanupEnclaves(ctx context.Context) {
	if o.enclaves == nil {
		return
	}
	o.mu.Lock()
	due := time.Since(o.lastCleanup) >= o.cleanupInterval
	if due {
		o.lastCleanup = time.Now()
	}
	o.mu.Unlock()
	if !due {
		return
	}
	n, err := o.enclaves.CleanupExpired(ctx)
	if err != nil {
		o.logger.Warn(ctx, "enclave cleanup failed", "err", err)
		return
	}
	if n > 0 {
		o.logger.Info(ctx, fmt.Sprintf("enclave cleanup reclaimed %d expired enclaves", n))
	}
}

// Queue exposes the underlying TaskQueue for callers that need to inspect
// or seed tasks directly (tests, checkpoint resume).
func (o *Orchestrator) Queue() *TaskQueue { return o.queue }

// Pool exposes the underlying agent Pool.
func (o *Orchestrator) Pool() *Pool { return o.pool }
