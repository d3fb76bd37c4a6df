package crdt

import "time"

type lwwEntry struct {
	reg     Register
	deleted bool
}

// LWWMap is a per-key LWWRegister of (value, deleted): a map whose entries
// are independently last-writer-wins, so concurrent puts and deletes of
// different keys never interfere.
type LWWMap struct {
	entries map[string]lwwEntry
}

// NewLWWMap returns an empty LWW-Map.
func NewLWWMap() *LWWMap {
	return &LWWMap{entries: make(map[string]lwwEntry)}
}

// Put sets key's value at ts, provided ts is not older than that key's
// current register timestamp.
func (m *LWWMap) Put(key string, value any, ts time.Time, replicaID string) {
	e, ok := m.entries[key]
	if !ok {
		m.entries[key] = lwwEntry{reg: Register{Value: value, Ts: ts, ReplicaID: replicaID}}
		return
	}
	if ts.Before(e.reg.Ts) {
		return
	}
	m.entries[key] = lwwEntry{reg: Register{Value: value, Ts: ts, ReplicaID: replicaID}, deleted: false}
}

// Delete tombstones key at ts using the same last-writer-wins rule as Put.
func (m *LWWMap) Delete(key string, ts time.Time, replicaID string) {
	e, ok := m.entries[key]
	if !ok {
		m.entries[key] = lwwEntry{reg: Register{Ts: ts, ReplicaID: replicaID}, deleted: true}
		return
	}
	if ts.Before(e.reg.Ts) {
		return
	}
	m.entries[key] = lwwEntry{reg: Register{Value: e.reg.Value, Ts: ts, ReplicaID: replicaID}, deleted: true}
}

// Get returns key's value and whether it is present (not deleted).
func (m *LWWMap) Get(key string) (any, bool) {
	e, ok := m.entries[key]
	if !ok || e.deleted {
		return nil, false
	}
	return e.reg.Value, true
}

// Keys returns every non-deleted key.
func (m *LWWMap) Keys() []string {
	out := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.deleted {
			out = append(out, k)
		}
	}
	return out
}

// Merge applies other's entries, keeping per-key whichever register wins
// under Register.Merge together with the deleted flag of the side that
// supplied the winning register.
func (m *LWWMap) Merge(other *LWWMap) {
	for key, oe := range other.entries {
		e, ok := m.entries[key]
		if !ok {
			m.entries[key] = oe
			continue
		}
		winner := e.reg.Merge(oe.reg)
		deleted := e.deleted
		if winner == oe.reg {
			deleted = oe.deleted
		}
		m.entries[key] = lwwEntry{reg: winner, deleted: deleted}
	}
}
