package sharedcontext_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/workflow-core/sharedcontext"
)

func newReplica(id string, strategy sharedcontext.ResolutionStrategy) *sharedcontext.Replica {
	r := sharedcontext.New(sharedcontext.Options{ID: id, Strategy: strategy})
	r.ACL().Grant("writer", sharedcontext.AccessWrite)
	r.ACL().Grant("admin", sharedcontext.AccessAdmin)
	return r
}

func TestUpsertNodeRequiresWriteAccess(t *testing.T) {
	r := newReplica("r1", sharedcontext.LastWriteWins)
	_, err := r.UpsertNode("stranger", sharedcontext.Node{ID: "n1"})
	require.Error(t, err)

	_, err = r.UpsertNode("writer", sharedcontext.Node{ID: "n1"})
	require.NoError(t, err)
	n, ok := r.Node("n1")
	require.True(t, ok)
	require.Equal(t, "n1", n.ID)
}

func TestGrantAccessRequiresAdmin(t *testing.T) {
	r := newReplica("r1", sharedcontext.LastWriteWins)
	err := r.GrantAccess("writer", "newguy", sharedcontext.AccessRead)
	require.Error(t, err)

	err = r.GrantAccess("admin", "newguy", sharedcontext.AccessRead)
	require.NoError(t, err)
	require.True(t, r.ACL().Allows("newguy", sharedcontext.AccessRead))
}

func TestVectorClockStrictlyIncreasesOnOwnChanges(t *testing.T) {
	r := newReplica("r1", sharedcontext.LastWriteWins)
	c1, err := r.UpsertNode("writer", sharedcontext.Node{ID: "n1"})
	require.NoError(t, err)
	c2, err := r.UpsertNode("writer", sharedcontext.Node{ID: "n2"})
	require.NoError(t, err)

	require.Greater(t, c2.Clock["r1"], c1.Clock["r1"])
}

func TestApplyRemoteDominatingChangeApplies(t *testing.T) {
	r1 := newReplica("r1", sharedcontext.LastWriteWins)
	r2 := newReplica("r2", sharedcontext.LastWriteWins)
	r2.ACL().Grant("writer", sharedcontext.AccessWrite)

	change, err := r2.UpsertNode("writer", sharedcontext.Node{ID: "shared"})
	require.NoError(t, err)

	require.NoError(t, r1.ApplyRemote(change))
	n, ok := r1.Node("shared")
	require.True(t, ok)
	require.Equal(t, "shared", n.ID)
}

func TestApplyRemoteObsoleteChangeIgnored(t *testing.T) {
	r1 := newReplica("r1", sharedcontext.LastWriteWins)

	first := sharedcontext.Change{
		ID: "r2-1", Op: sharedcontext.OpUpsertNode, NodeID: "a",
		Node: &sharedcontext.Node{ID: "a", Data: map[string]any{"v": 1}},
		ReplicaID: "r2", Clock: map[string]int64{"r2": 1}, At: time.Now(),
	}
	require.NoError(t, r1.ApplyRemote(first)) // Before: r1 knows nothing of r2 yet

	second := sharedcontext.Change{
		ID: "r2-2", Op: sharedcontext.OpUpsertNode, NodeID: "a",
		Node: &sharedcontext.Node{ID: "a", Data: map[string]any{"v": 2}},
		ReplicaID: "r2", Clock: map[string]int64{"r2": 2}, At: time.Now(),
	}
	require.NoError(t, r1.ApplyRemote(second)) // Before: r1's merged clock is still behind

	// Replaying `first` again is now obsolete: r1's clock (r2:2) dominates it.
	require.NoError(t, r1.ApplyRemote(first))
	n, ok := r1.Node("a")
	require.True(t, ok)
	require.Equal(t, 2, n.Data["v"], "obsolete remote change must not overwrite newer local state")
}

func TestManualStrategyLeavesConflictPending(t *testing.T) {
	r1 := newReplica("r1", sharedcontext.Manual)

	local, err := r1.UpsertNode("writer", sharedcontext.Node{ID: "x", Data: map[string]any{"v": "local"}})
	require.NoError(t, err)

	remote := sharedcontext.Change{
		ID:        "remote-1",
		Op:        sharedcontext.OpUpsertNode,
		NodeID:    "x",
		Node:      &sharedcontext.Node{ID: "x", Data: map[string]any{"v": "remote"}},
		ReplicaID: "r2",
		Clock:     map[string]int64{"r2": 1},
		At:        local.At,
	}
	require.NoError(t, r1.ApplyRemote(remote))

	conflicts := r1.Conflicts()
	require.Len(t, conflicts, 1)
	require.Equal(t, sharedcontext.ConflictManualPending, conflicts[0].Status)
}
