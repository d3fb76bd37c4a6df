package inmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/workflow-core/provenance"
	"github.com/fluxgraph/workflow-core/provenance/inmem"
)

func TestStoreRejectsDuplicateID(t *testing.T) {
	s := inmem.New()
	ctx := context.Background()
	tr := provenance.Trace{ID: "t-1", StartedAt: time.Now()}

	res, err := s.Store(ctx, tr)
	require.NoError(t, err)
	require.True(t, res.Stored)

	res, err = s.Store(ctx, tr)
	require.NoError(t, err)
	require.True(t, res.Rejected)
}

func TestQueryFiltersByAgentAndTime(t *testing.T) {
	s := inmem.New()
	ctx := context.Background()
	base := time.Now()

	for i, did := range []string{"agent-a", "agent-b", "agent-a"} {
		require.NoError(t, storeAt(ctx, s, did, "Observe", base.Add(time.Duration(i)*time.Minute)))
	}

	out, err := s.Query(ctx, provenance.Query{AgentDID: "agent-a"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	// newest first
	require.True(t, out[0].StartedAt.After(out[1].StartedAt))

	out, err = s.Query(ctx, provenance.Query{FromTime: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestQueryAppliesLimitAndOffset(t *testing.T) {
	s := inmem.New()
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, storeAt(ctx, s, "agent-a", "Observe", base.Add(time.Duration(i)*time.Minute)))
	}

	out, err := s.Query(ctx, provenance.Query{AgentDID: "agent-a", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestGetByIDMissing(t *testing.T) {
	s := inmem.New()
	_, ok, err := s.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func storeAt(ctx context.Context, s *inmem.Store, agentDID, action string, ts time.Time) error {
	_, err := s.Store(ctx, provenance.Trace{
		ID:                agentDID + action + ts.String(),
		StartedAt:         ts,
		WasAssociatedWith: provenance.Association{AgentDID: agentDID},
		Used:              provenance.Usage{Affordance: action},
	})
	return err
}
