// Package temporal adapts engine.Engine onto go.temporal.io/sdk, giving
// scheduling ticks and agent runs durable, replay-safe execution in
// production deployments. Tests and local development use engine/inmem
// instead.
package temporal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/fluxgraph/workflow-core/engine"
)

// Options configures the Temporal engine adapter.
type Options struct {
	// Client is a pre-configured Temporal client. Required.
	Client client.Client
	// TaskQueue is the queue the worker polls and StartRun schedules onto.
	TaskQueue string
}

type eng struct {
	client    client.Client
	taskQueue string

	mu     sync.Mutex
	worker worker.Worker
	names  map[string]struct{}
}

// New builds an Engine backed by Temporal.
func New(opts Options) (engine.Engine, error) {
	if opts.Client == nil {
		return nil, errors.New("temporal: client is required")
	}
	if opts.TaskQueue == "" {
		return nil, errors.New("temporal: task queue is required")
	}
	return &eng{
		client:    opts.Client,
		taskQueue: opts.TaskQueue,
		worker:    worker.New(opts.Client, opts.TaskQueue, worker.Options{}),
		names:     make(map[string]struct{}),
	}, nil
}

// Start begins polling the task queue. Call once after all RunDefinitions
// have been registered.
func (e *eng) Start() error {
	return e.worker.Start()
}

// Stop halts the worker.
func (e *eng) Stop() {
	e.worker.Stop()
}

func (e *eng) RegisterRun(_ context.Context, def engine.RunDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("temporal: invalid run definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.names[def.Name]; dup {
		return fmt.Errorf("temporal: run %q already registered", def.Name)
	}
	e.names[def.Name] = struct{}{}

	handler := def.Handler
	e.worker.RegisterWorkflowWithOptions(func(ctx workflow.Context, input any) (any, error) {
		return handler(&runContext{ctx: ctx}, input)
	}, workflow.RegisterOptions{Name: def.Name})
	return nil
}

func (e *eng) StartRun(ctx context.Context, req engine.StartRunRequest) (engine.Handle, error) {
	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        req.ID,
		TaskQueue: e.taskQueue,
	}, req.Run, req.Input)
	if err != nil {
		return nil, fmt.Errorf("temporal: start run %q: %w", req.Run, err)
	}
	return &handle{client: e.client, run: run}, nil
}

func (e *eng) QueryRunStatus(ctx context.Context, runID string) (engine.RunStatus, error) {
	desc, err := e.client.DescribeWorkflowExecution(ctx, runID, "")
	if err != nil {
		return "", engine.ErrRunNotFound
	}
	switch desc.WorkflowExecutionInfo.GetStatus().String() {
	case "Completed":
		return engine.RunStatusCompleted, nil
	case "Failed", "Terminated", "TimedOut":
		return engine.RunStatusFailed, nil
	case "Canceled":
		return engine.RunStatusCanceled, nil
	default:
		return engine.RunStatusRunning, nil
	}
}

type runContext struct {
	ctx workflow.Context
}

func (r *runContext) Context() context.Context {
	// Temporal's workflow.Context is not a stdlib context.Context; callers
	// inside a workflow body must use workflow.* deterministic APIs instead,
	// this exists only to satisfy engine.RunContext for non-deterministic
	// helpers that accept a plain context.
	return context.Background()
}

func (r *runContext) RunID() string {
	return workflow.GetInfo(r.ctx).WorkflowExecution.RunID
}

func (r *runContext) Now() time.Time {
	return workflow.Now(r.ctx)
}

type handle struct {
	client client.Client
	run    client.WorkflowRun
}

func (h *handle) Wait(ctx context.Context) (any, error) {
	var result any
	if err := h.run.Get(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (h *handle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.run.GetID(), h.run.GetRunID())
}
