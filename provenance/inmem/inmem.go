// Package inmem provides an in-memory implementation of provenance.Store.
//
// The in-memory store is intended for tests and single-process deployments.
// It is not durable and should not be used where traces must survive a
// process restart.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fluxgraph/workflow-core/provenance"
)

// Store implements provenance.Store in memory, indexed by agent DID and
// action type so Query can filter without a full scan in the common case.
type Store struct {
	mu sync.Mutex

	byID       map[string]provenance.Trace
	order      []string // insertion order, oldest first
	byAgent    map[string][]string
	byAction   map[string][]string
}

// New returns a new in-memory provenance store.
func New() *Store {
	return &Store{
		byID:     make(map[string]provenance.Trace),
		byAgent:  make(map[string][]string),
		byAction: make(map[string][]string),
	}
}

// Store implements provenance.Store.
func (s *Store) Store(_ context.Context, t provenance.Trace) (provenance.Result, error) {
	if t.ID == "" {
		return provenance.Result{}, fmt.Errorf("trace id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[t.ID]; exists {
		return provenance.Result{Rejected: true, Reason: "trace id already stored"}, nil
	}

	s.byID[t.ID] = t
	s.order = append(s.order, t.ID)
	if t.WasAssociatedWith.AgentDID != "" {
		s.byAgent[t.WasAssociatedWith.AgentDID] = append(s.byAgent[t.WasAssociatedWith.AgentDID], t.ID)
	}
	if t.Used.Affordance != "" {
		s.byAction[t.Used.Affordance] = append(s.byAction[t.Used.Affordance], t.ID)
	}
	return provenance.Result{Stored: true}, nil
}

// Query implements provenance.Store.
func (s *Store) Query(_ context.Context, q provenance.Query) ([]provenance.Trace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.candidateIDs(q)

	out := make([]provenance.Trace, 0, len(candidates))
	for _, id := range candidates {
		t := s.byID[id]
		if !matches(t, q) {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// GetByID implements provenance.Store.
func (s *Store) GetByID(_ context.Context, id string) (provenance.Trace, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	return t, ok, nil
}

// candidateIDs narrows the scan using the agent/action indexes when the
// query supplies one of those filters; otherwise it falls back to the full
// insertion-ordered set.
func (s *Store) candidateIDs(q provenance.Query) []string {
	switch {
	case q.AgentDID != "" && q.ActionType != "":
		return intersect(s.byAgent[q.AgentDID], s.byAction[q.ActionType])
	case q.AgentDID != "":
		return append([]string(nil), s.byAgent[q.AgentDID]...)
	case q.ActionType != "":
		return append([]string(nil), s.byAction[q.ActionType]...)
	default:
		return append([]string(nil), s.order...)
	}
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	out := make([]string, 0)
	for _, id := range b {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func matches(t provenance.Trace, q provenance.Query) bool {
	if q.AgentDID != "" && t.WasAssociatedWith.AgentDID != q.AgentDID {
		return false
	}
	if q.ActionType != "" && t.Used.Affordance != q.ActionType {
		return false
	}
	if !q.FromTime.IsZero() && t.StartedAt.Before(q.FromTime) {
		return false
	}
	if !q.ToTime.IsZero() && t.StartedAt.After(q.ToTime) {
		return false
	}
	return true
}
