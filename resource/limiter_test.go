package resource_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/workflow-core/resource"
)

func TestAcquireRespectsConcurrencyCap(t *testing.T) {
	lim := resource.New(resource.Budget{ConcurrentCalls: 1})

	r1, err := lim.Acquire(context.Background(), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = lim.Acquire(ctx, 0)
	require.Error(t, err)

	r1.Release(0, 0)

	r2, err := lim.Acquire(context.Background(), 0)
	require.NoError(t, err)
	r2.Release(0, 0)
}

func TestAcquireGatesOnTokensPerMinute(t *testing.T) {
	lim := resource.New(resource.Budget{TokensPerMinute: 600}) // 10 tokens/sec, burst 600
	r, err := lim.Acquire(context.Background(), 600)
	require.NoError(t, err)
	r.Release(600, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = lim.Acquire(ctx, 600)
	require.Error(t, err)
}
