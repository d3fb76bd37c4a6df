// Package sharedcontext implements the Shared Context Core: a CRDT-
// replicated labeled graph with per-context access control, a bounded
// change log, vector-clock conflict detection and resolution, and
// last-write-wins presence (spec.md §4.7).
package sharedcontext

import (
	"time"

	"github.com/fluxgraph/workflow-core/crdt"
)

// Node is one labeled vertex of a SharedContext graph. Data fields may
// themselves be CRDT primitives (see the crdt package) so concurrent
// writers converge.
type Node struct {
	ID     string
	Labels []string
	Data   map[string]any
}

// Edge is one labeled, directed connection between two nodes.
type Edge struct {
	ID     string
	From   string
	To     string
	Labels []string
	Data   map[string]any
}

// ChangeOp names the kind of mutation a Change records.
type ChangeOp string

const (
	OpUpsertNode ChangeOp = "upsert_node"
	OpDeleteNode ChangeOp = "delete_node"
	OpUpsertEdge ChangeOp = "upsert_edge"
	OpDeleteEdge ChangeOp = "delete_edge"
)

// Change is one entry of a replica's bounded, totally-ordered local log
// (spec.md §4.7: "appends a Change to a bounded log, keep last 1000").
type Change struct {
	ID        string
	Op        ChangeOp
	NodeID    string
	EdgeID    string
	Node      *Node
	Edge      *Edge
	ReplicaID string
	Clock     crdt.VectorClock
	At        time.Time
}
