package provenance

import "context"

// Result reports the outcome of a Store call.
type Result struct {
	Stored   bool
	Rejected bool
	Reason   string
}

// Store is an append-only trace store. Implementations must provide stable
// ordering and must reject (not silently drop) duplicate IDs, since a
// duplicate ID indicates a caller bug rather than a legitimate re-trace.
type Store interface {
	// Store appends a trace. Storing a trace whose ID already exists is
	// rejected rather than overwriting the existing record.
	Store(ctx context.Context, t Trace) (Result, error)

	// Query returns traces matching the filter, newest-first.
	Query(ctx context.Context, q Query) ([]Trace, error)

	// GetByID returns a single trace, or ok=false if no trace has that ID.
	GetByID(ctx context.Context, id string) (Trace, bool, error)
}
