// Package crdt implements the conflict-free replicated data primitives the
// Shared Context Core composes node and edge data fields from (spec.md
// §4.7): LWWRegister, G-Counter, PN-Counter, OR-Set, and LWW-Map.
package crdt

import "time"

// Register is a last-writer-wins register: (value, ts, replicaId). Set
// requires ts to be at or after the current timestamp; Merge picks the
// greater of (ts, replicaId) between two registers.
type Register struct {
	Value     any
	Ts        time.Time
	ReplicaID string
}

// Set assigns v at ts, provided ts is not older than the register's current
// timestamp (spec.md §4.7: "set(v, ts) with ts ≥ current").
func (r Register) Set(v any, ts time.Time, replicaID string) Register {
	if ts.Before(r.Ts) {
		return r
	}
	return Register{Value: v, Ts: ts, ReplicaID: replicaID}
}

// Merge returns the register that wins under (ts, replicaId) ordering: the
// later timestamp wins; a tie is broken by replicaId lexicographic order
// (spec.md §9's "equal timestamp" quirk — the later replicaId wins a tie,
// not the earlier one).
func (r Register) Merge(other Register) Register {
	if other.Ts.After(r.Ts) {
		return other
	}
	if other.Ts.Before(r.Ts) {
		return r
	}
	if other.ReplicaID > r.ReplicaID {
		return other
	}
	return r
}
