// Package enclave defines the optional EnclaveService collaborator: a
// scoped, time-bounded working area an agent can seal once it finishes
// writing to it (spec.md §6). The core proceeds without enclaves when no
// implementation is configured.
package enclave

import (
	"context"
	"time"
)

// Enclave is a scoped, TTL-bounded working area.
type Enclave struct {
	ID        string
	AgentDID  string
	Scope     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Sealed    bool
}

// CreateRequest describes a new Enclave.
type CreateRequest struct {
	AgentDID string
	Scope    string
	TTL      time.Duration
}

// Service is the optional EnclaveService collaborator.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (Enclave, error)
	Seal(ctx context.Context, id string) error
	CleanupExpired(ctx context.Context) (int, error)
}
