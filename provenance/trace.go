// Package provenance implements the append-only Provenance Store: every
// TRAVERSE call the Context Broker services is recorded as a Trace once its
// outcome is known, including when the call is denied or the effect fails.
package provenance

import "time"

// Outcome classifies how a traced action concluded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// Association identifies the agent a trace is associated with (PROV-style
// wasAssociatedWith).
type Association struct {
	AgentDID  string
	AgentType string
}

// Usage records what the traced action consumed (PROV-style used).
type Usage struct {
	ContextSnapshotRef string
	Affordance         string
	Parameters         map[string]any
	Credentials        []string
}

// Generation records what the traced action produced (PROV-style
// wasGeneratedBy/generated).
type Generation struct {
	Outcome       Outcome
	ResultType    string
	StateChanges  []string
	EventsEmitted []string
}

// Trace is one immutable provenance record. Once stored, a Trace is never
// mutated or deleted; corrections are appended as new traces.
type Trace struct {
	ID                string
	StartedAt         time.Time
	EndedAt           time.Time
	WasAssociatedWith Association
	Used              Usage
	Generated         Generation
	UsageEvent        *UsageEvent
	InterventionLabel string
}

// UsageEvent carries token/cost accounting for traces produced by a
// reasoning step, when applicable.
type UsageEvent struct {
	PromptTokens     int64
	CompletionTokens int64
	CostUSD          float64
}

// Query filters the trace history. Results are returned newest-first
// (descending StartedAt); Limit <= 0 means unlimited.
type Query struct {
	AgentDID   string
	ActionType string
	FromTime   time.Time
	ToTime     time.Time
	Limit      int
	Offset     int
}
