package inmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/workflow-core/engine"
	"github.com/fluxgraph/workflow-core/engine/inmem"
)

func TestStartRunCompletes(t *testing.T) {
	e := inmem.New()
	require.NoError(t, e.RegisterRun(context.Background(), engine.RunDefinition{
		Name: "echo",
		Handler: func(rc engine.RunContext, input any) (any, error) {
			return input, nil
		},
	}))

	h, err := e.StartRun(context.Background(), engine.StartRunRequest{ID: "run-1", Run: "echo", Input: "hello"})
	require.NoError(t, err)

	result, err := h.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello", result)

	status, err := e.QueryRunStatus(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, engine.RunStatusCompleted, status)
}

func TestStartRunUnknownDefinitionFails(t *testing.T) {
	e := inmem.New()
	_, err := e.StartRun(context.Background(), engine.StartRunRequest{ID: "run-1", Run: "missing"})
	require.Error(t, err)
}

func TestQueryRunStatusUnknownRun(t *testing.T) {
	e := inmem.New()
	_, err := e.QueryRunStatus(context.Background(), "nope")
	require.ErrorIs(t, err, engine.ErrRunNotFound)
}

func TestStartRunFailurePropagates(t *testing.T) {
	e := inmem.New()
	require.NoError(t, e.RegisterRun(context.Background(), engine.RunDefinition{
		Name: "boom",
		Handler: func(rc engine.RunContext, input any) (any, error) {
			return nil, context.DeadlineExceeded
		},
	}))
	h, err := e.StartRun(context.Background(), engine.StartRunRequest{ID: "run-2", Run: "boom"})
	require.NoError(t, err)

	_, err = h.Wait(context.Background())
	require.Error(t, err)

	status, err := e.QueryRunStatus(context.Background(), "run-2")
	require.NoError(t, err)
	require.Equal(t, engine.RunStatusFailed, status)

	time.Sleep(time.Millisecond) // let status write settle before any follow-on assertions
}
