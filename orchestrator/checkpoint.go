package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fluxgraph/workflow-core/ids"
)

// ErrCheckpointNotFound is returned by Resume when id names no stored checkpoint.
var ErrCheckpointNotFound = errors.New("orchestrator: checkpoint not found")

// Checkpoint is a content-hashed snapshot of one workflow's resumable
// state (spec.md §4.6 "Checkpointing").
type Checkpoint struct {
	ID             string
	WorkflowID     string
	QueuedTaskIDs  []string
	CompletedTaskIDs []string
	Goal           map[string]any
	WorkingMemory  map[string]any
	Hash           string
	CreatedAt      time.Time
}

// CheckpointStore is the collaborator interface of spec.md §6.
type CheckpointStore interface {
	Create(ctx context.Context, snapshot Checkpoint) (Checkpoint, error)
	Resume(ctx context.Context, id string) (Checkpoint, error)
	PruneKeepLatest(ctx context.Context, workflowID string, n int) error
}

type inmemCheckpointStore struct {
	mu       sync.Mutex
	byID     map[string]Checkpoint
	byWF     map[string][]string // workflowID -> checkpoint IDs, oldest first
}

// NewInmemCheckpointStore returns an in-memory CheckpointStore.
func NewInmemCheckpointStore() CheckpointStore {
	return &inmemCheckpointStore{byID: make(map[string]Checkpoint), byWF: make(map[string][]string)}
}

func (s *inmemCheckpointStore) Create(_ context.Context, snapshot Checkpoint) (Checkpoint, error) {
	snapshot.ID = ids.NewPrefixed("checkpoint")
	snapshot.Hash = hashSnapshot(snapshot)
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[snapshot.ID] = snapshot
	s.byWF[snapshot.WorkflowID] = append(s.byWF[snapshot.WorkflowID], snapshot.ID)
	return snapshot, nil
}

func (s *inmemCheckpointStore) Resume(_ context.Context, id string) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.byID[id]
	if !ok {
		return Checkpoint{}, ErrCheckpointNotFound
	}
	return cp, nil
}

func (s *inmemCheckpointStore) PruneKeepLatest(_ context.Context, workflowID string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cpIDs := s.byWF[workflowID]
	if len(cpIDs) <= n {
		return nil
	}
	toRemove := cpIDs[:len(cpIDs)-n]
	for _, id := range toRemove {
		delete(s.byID, id)
	}
	s.byWF[workflowID] = cpIDs[len(cpIDs)-n:]
	return nil
}

func hashSnapshot(cp Checkpoint) string {
	cp.Hash = ""
	cp.ID = ""
	b, _ := json.Marshal(cp)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
