package sharedcontext

import "sort"

// ResolutionStrategy is a per-context setting governing how concurrent
// (neither-dominates) changes are resolved (spec.md §4.7).
type ResolutionStrategy string

const (
	LastWriteWins  ResolutionStrategy = "last_write_wins"
	FirstWriteWins ResolutionStrategy = "first_write_wins"
	AutoMerge      ResolutionStrategy = "auto_merge"
	Manual         ResolutionStrategy = "manual"
	Custom         ResolutionStrategy = "custom"
)

// ConflictStatus is a Conflict record's resolution state.
type ConflictStatus string

const (
	ConflictResolved      ConflictStatus = "resolved"
	ConflictManualPending ConflictStatus = "manual_pending"
)

// Conflict records two changes the vector clock found concurrent, together
// with how (or whether yet) they were resolved.
type Conflict struct {
	ID       string
	Local    Change
	Remote   Change
	Strategy ResolutionStrategy
	Status   ConflictStatus
	Winner   *Change // nil while Status is manual_pending
}

// Resolve applies strategy to a concurrent (local, remote) pair, returning
// the winning change(s) in the order they should be applied. auto_merge
// returns both, in timestamp order, on the assumption the underlying CRDT
// operations commute; last_write_wins, first_write_wins and any
// unrecognized strategy (which falls back to last_write_wins) return
// exactly one; manual and custom return none, with status manual_pending.
func Resolve(strategy ResolutionStrategy, local, remote Change) (winners []Change, status ConflictStatus) {
	switch strategy {
	case LastWriteWins:
		return []Change{lastWriteWins(local, remote)}, ConflictResolved
	case FirstWriteWins:
		return []Change{firstWriteWins(local, remote)}, ConflictResolved
	case AutoMerge:
		ordered := []Change{local, remote}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].At.Before(ordered[j].At) })
		return ordered, ConflictResolved
	case Manual, Custom:
		return nil, ConflictManualPending
	default:
		return []Change{lastWriteWins(local, remote)}, ConflictResolved
	}
}

// lastWriteWins picks the later timestamp, breaking ties by replicaId
// lexicographic order (spec.md §4.7).
func lastWriteWins(local, remote Change) Change {
	if remote.At.After(local.At) {
		return remote
	}
	if remote.At.Before(local.At) {
		return local
	}
	if remote.ReplicaID > local.ReplicaID {
		return remote
	}
	return local
}

func firstWriteWins(local, remote Change) Change {
	if remote.At.Before(local.At) {
		return remote
	}
	if remote.At.After(local.At) {
		return local
	}
	if remote.ReplicaID < local.ReplicaID {
		return remote
	}
	return local
}

// ResolveManual supplies the winner for a manual_pending conflict.
func ResolveManual(c *Conflict, winner Change) {
	c.Winner = &winner
	c.Status = ConflictResolved
}
