// Package inmem provides a goroutine-backed Engine implementation suitable
// for local development and tests. It is not durable: a process restart
// loses all running and completed run state.
package inmem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fluxgraph/workflow-core/engine"
)

type eng struct {
	mu       sync.RWMutex
	runs     map[string]engine.RunDefinition
	statuses map[string]engine.RunStatus
}

// New returns a new in-memory Engine.
func New() engine.Engine {
	return &eng{
		runs:     make(map[string]engine.RunDefinition),
		statuses: make(map[string]engine.RunStatus),
	}
}

func (e *eng) RegisterRun(_ context.Context, def engine.RunDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("inmem: invalid run definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.runs[def.Name]; dup {
		return fmt.Errorf("inmem: run %q already registered", def.Name)
	}
	e.runs[def.Name] = def
	return nil
}

func (e *eng) StartRun(ctx context.Context, req engine.StartRunRequest) (engine.Handle, error) {
	if req.ID == "" {
		return nil, errors.New("inmem: run id is required")
	}
	e.mu.RLock()
	def, ok := e.runs[req.Run]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inmem: run %q not registered", req.Run)
	}

	e.mu.Lock()
	e.statuses[req.ID] = engine.RunStatusRunning
	e.mu.Unlock()

	h := &handle{done: make(chan struct{})}
	rctx := &runContext{ctx: ctx, id: req.ID}

	go func() {
		defer close(h.done)
		result, err := def.Handler(rctx, req.Input)
		h.mu.Lock()
		h.result, h.err = result, err
		h.mu.Unlock()

		e.mu.Lock()
		switch {
		case err == nil:
			e.statuses[req.ID] = engine.RunStatusCompleted
		case errors.Is(err, context.Canceled):
			e.statuses[req.ID] = engine.RunStatusCanceled
		default:
			e.statuses[req.ID] = engine.RunStatusFailed
		}
		e.mu.Unlock()
	}()

	return h, nil
}

func (e *eng) QueryRunStatus(_ context.Context, runID string) (engine.RunStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	status, ok := e.statuses[runID]
	if !ok {
		return "", engine.ErrRunNotFound
	}
	return status, nil
}

type runContext struct {
	ctx context.Context
	id  string
}

func (r *runContext) Context() context.Context { return r.ctx }
func (r *runContext) RunID() string            { return r.id }
func (r *runContext) Now() time.Time           { return time.Now() }

type handle struct {
	mu     sync.Mutex
	done   chan struct{}
	result any
	err    error
}

func (h *handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	}
}

// Cancel does not stop the run: a run started on the in-memory engine
// always continues to completion, and Cancel returns nil.
func (h *handle) Cancel(context.Context) error {
	return nil
}
