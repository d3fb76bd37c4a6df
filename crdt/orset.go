package crdt

// tag uniquely identifies one add operation so concurrent adds and removes
// of the same element can be tracked independently across replicas.
type tag struct {
	replicaID string
	uuid      string
}

// ORSet is an observed-remove set: every add tags its element with a
// unique (replicaId, uuid); remove marks matching tags deleted; merge
// unions tags while preserving each tag's deletion flag.
type ORSet struct {
	tags map[any]map[tag]bool // element -> tag -> deleted
}

// NewORSet returns an empty OR-Set.
func NewORSet() *ORSet {
	return &ORSet{tags: make(map[any]map[tag]bool)}
}

// Add tags element as present under a fresh (replicaID, uuid) pair.
func (s *ORSet) Add(element any, replicaID, uuid string) {
	t := tag{replicaID: replicaID, uuid: uuid}
	if s.tags[element] == nil {
		s.tags[element] = make(map[tag]bool)
	}
	s.tags[element][t] = false
}

// Remove marks every currently-observed tag of element as deleted. Tags
// added concurrently on another replica and not yet observed here survive
// until a later merge carries them in, so a concurrent add "wins" over a
// remove that did not observe it.
func (s *ORSet) Remove(element any) {
	tags, ok := s.tags[element]
	if !ok {
		return
	}
	for t := range tags {
		tags[t] = true
	}
}

// Contains reports whether element has at least one live (non-deleted) tag.
func (s *ORSet) Contains(element any) bool {
	for _, deleted := range s.tags[element] {
		if !deleted {
			return true
		}
	}
	return false
}

// Elements returns every element with at least one live tag.
func (s *ORSet) Elements() []any {
	out := make([]any, 0, len(s.tags))
	for element := range s.tags {
		if s.Contains(element) {
			out = append(out, element)
		}
	}
	return out
}

// Merge unions other's tags into s. A tag deleted in either replica is
// deleted in the result.
func (s *ORSet) Merge(other *ORSet) {
	for element, otherTags := range other.tags {
		if s.tags[element] == nil {
			s.tags[element] = make(map[tag]bool)
		}
		for t, deleted := range otherTags {
			if existing, ok := s.tags[element][t]; ok {
				s.tags[element][t] = existing || deleted
			} else {
				s.tags[element][t] = deleted
			}
		}
	}
}
