// Package inmem provides an in-memory EnclaveService suitable for tests and
// single-process deployments.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/fluxgraph/workflow-core/enclave"
	"github.com/fluxgraph/workflow-core/ids"
)

// Service is an in-memory enclave.Service.
type Service struct {
	mu    sync.Mutex
	byID  map[string]enclave.Enclave
	clock func() time.Time
}

// New returns an empty in-memory Service.
func New() *Service {
	return &Service{byID: make(map[string]enclave.Enclave), clock: time.Now}
}

func (s *Service) Create(_ context.Context, req enclave.CreateRequest) (enclave.Enclave, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	e := enclave.Enclave{
		ID:        ids.NewPrefixed("enclave"),
		AgentDID:  req.AgentDID,
		Scope:     req.Scope,
		CreatedAt: now,
		ExpiresAt: now.Add(req.TTL),
	}
	s.byID[e.ID] = e
	return e, nil
}

func (s *Service) Seal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil
	}
	e.Sealed = true
	s.byID[id] = e
	return nil
}

func (s *Service) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	removed := 0
	for id, e := range s.byID {
		if now.After(e.ExpiresAt) {
			delete(s.byID, id)
			removed++
		}
	}
	return removed, nil
}
