package sharedcontext

import (
	"fmt"
	"sync"
	"time"

	"github.com/fluxgraph/workflow-core/coreerr"
	"github.com/fluxgraph/workflow-core/crdt"
	"github.com/fluxgraph/workflow-core/ids"
)

const maxLogLen = 1000

// Emitter broadcasts a locally-applied Change to other replicas. The core
// never talks to transport directly; the implementer wires this to
// whatever pub/sub or RPC mechanism connects replicas (spec.md §4.7).
type Emitter func(change Change)

// Replica holds one broker's full copy of a SharedContext: its graph,
// ACL, vector clock, bounded change log, and any open conflicts.
type Replica struct {
	mu sync.Mutex

	id       string
	strategy ResolutionStrategy
	emit     Emitter
	clock    func() time.Time

	acl         *ACL
	vectorClock crdt.VectorClock

	nodes map[string]Node
	edges map[string]Edge

	log       []Change
	conflicts []Conflict
}

// Options configures a Replica.
type Options struct {
	ID       string
	Strategy ResolutionStrategy
	Emitter  Emitter
	Clock    func() time.Time
}

// New builds a Replica. Strategy defaults to last_write_wins.
func New(opts Options) *Replica {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = LastWriteWins
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Replica{
		id:          opts.ID,
		strategy:    strategy,
		emit:        opts.Emitter,
		clock:       clock,
		acl:         NewACL(),
		vectorClock: crdt.NewVectorClock(),
		nodes:       make(map[string]Node),
		edges:       make(map[string]Edge),
	}
}

// ACL returns the replica's access control list.
func (r *Replica) ACL() *ACL {
	return r.acl
}

// UpsertNode applies a local node mutation, requiring principal to hold at
// least write access (spec.md §4.7's "mutations need ≥ write").
func (r *Replica) UpsertNode(principal string, node Node) (Change, error) {
	if !r.acl.Allows(principal, AccessWrite) {
		return Change{}, coreerr.New(coreerr.KindAccessDenied, "write access required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[node.ID] = node
	return r.appendLocal(OpUpsertNode, node.ID, "", &node, nil), nil
}

// DeleteNode applies a local node deletion, requiring at least write access.
func (r *Replica) DeleteNode(principal, nodeID string) (Change, error) {
	if !r.acl.Allows(principal, AccessWrite) {
		return Change{}, coreerr.New(coreerr.KindAccessDenied, "write access required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, nodeID)
	return r.appendLocal(OpDeleteNode, nodeID, "", nil, nil), nil
}

// UpsertEdge applies a local edge mutation, requiring at least write access.
func (r *Replica) UpsertEdge(principal string, edge Edge) (Change, error) {
	if !r.acl.Allows(principal, AccessWrite) {
		return Change{}, coreerr.New(coreerr.KindAccessDenied, "write access required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges[edge.ID] = edge
	return r.appendLocal(OpUpsertEdge, "", edge.ID, nil, &edge), nil
}

// DeleteEdge applies a local edge deletion, requiring at least write access.
func (r *Replica) DeleteEdge(principal, edgeID string) (Change, error) {
	if !r.acl.Allows(principal, AccessWrite) {
		return Change{}, coreerr.New(coreerr.KindAccessDenied, "write access required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.edges, edgeID)
	return r.appendLocal(OpDeleteEdge, "", edgeID, nil, nil), nil
}

// GrantAccess changes principal's ACL level, requiring the caller to hold
// admin-or-higher access (spec.md §4.7: "ACL changes need ≥ admin").
func (r *Replica) GrantAccess(caller, principal string, level AccessLevel) error {
	if !r.acl.Allows(caller, AccessAdmin) {
		return coreerr.New(coreerr.KindAccessDenied, "admin access required")
	}
	r.acl.Grant(principal, level)
	return nil
}

// Node looks up a node by ID.
func (r *Replica) Node(id string) (Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	return n, ok
}

// Edge looks up an edge by ID.
func (r *Replica) Edge(id string) (Edge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.edges[id]
	return e, ok
}

// Conflicts returns every conflict recorded so far, including resolved ones.
func (r *Replica) Conflicts() []Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conflict, len(r.conflicts))
	copy(out, r.conflicts)
	return out
}

// appendLocal increments the vector clock, appends the change to the
// bounded log, and broadcasts it. Caller must hold r.mu.
func (r *Replica) appendLocal(op ChangeOp, nodeID, edgeID string, node *Node, edge *Edge) Change {
	r.vectorClock = r.vectorClock.Increment(r.id)
	change := Change{
		ID:        ids.NewPrefixed("change"),
		Op:        op,
		NodeID:    nodeID,
		EdgeID:    edgeID,
		Node:      node,
		Edge:      edge,
		ReplicaID: r.id,
		Clock:     r.vectorClock.Clone(),
		At:        r.clock(),
	}
	r.appendToLog(change)
	if r.emit != nil {
		r.emit(change)
	}
	return change
}

func (r *Replica) appendToLog(change Change) {
	r.log = append(r.log, change)
	if len(r.log) > maxLogLen {
		r.log = r.log[len(r.log)-maxLogLen:]
	}
}

// ApplyRemote processes a Change received from another replica: it compares
// vector clocks to detect obsolete, direct, or concurrent application per
// spec.md §4.7, resolving concurrent changes per the replica's strategy.
func (r *Replica) ApplyRemote(change Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.vectorClock.CompareTo(change.Clock) {
	case crdt.After, crdt.Equal:
		// Local already dominates (or matches): the remote change is obsolete.
		return nil
	case crdt.Before:
		r.applyChange(change)
		r.appendToLog(change)
		r.vectorClock = r.vectorClock.Merge(change.Clock)
		return nil
	default: // Concurrent
		return r.resolveConcurrent(change)
	}
}

func (r *Replica) resolveConcurrent(remote Change) error {
	local := r.mostRecentLocalChangeFor(remote)
	if local == nil {
		// Nothing local to conflict with; apply directly.
		r.applyChange(remote)
		r.appendToLog(remote)
		r.vectorClock = r.vectorClock.Merge(remote.Clock)
		return nil
	}

	winners, status := Resolve(r.strategy, *local, remote)
	conflict := Conflict{
		ID:       ids.NewPrefixed("conflict"),
		Local:    *local,
		Remote:   remote,
		Strategy: r.strategy,
		Status:   status,
	}
	if status == ConflictManualPending {
		r.conflicts = append(r.conflicts, conflict)
		return nil
	}
	for _, w := range winners {
		r.applyChange(w)
	}
	conflict.Winner = &winners[0]
	r.conflicts = append(r.conflicts, conflict)
	r.appendToLog(remote)
	r.vectorClock = r.vectorClock.Merge(remote.Clock)
	return nil
}

func (r *Replica) mostRecentLocalChangeFor(remote Change) *Change {
	key := remote.NodeID
	if key == "" {
		key = remote.EdgeID
	}
	for i := len(r.log) - 1; i >= 0; i-- {
		c := r.log[i]
		if c.NodeID == key || c.EdgeID == key {
			return &c
		}
	}
	return nil
}

func (r *Replica) applyChange(c Change) {
	switch c.Op {
	case OpUpsertNode:
		if c.Node != nil {
			r.nodes[c.Node.ID] = *c.Node
		}
	case OpDeleteNode:
		delete(r.nodes, c.NodeID)
	case OpUpsertEdge:
		if c.Edge != nil {
			r.edges[c.Edge.ID] = *c.Edge
		}
	case OpDeleteEdge:
		delete(r.edges, c.EdgeID)
	default:
		panic(fmt.Sprintf("sharedcontext: unknown change op %q", c.Op))
	}
}
