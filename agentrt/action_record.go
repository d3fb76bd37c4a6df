package agentrt

import "time"

// ActionRecord is one entry in an Agent Runtime's actionHistory: the
// decision that led to a traversal attempt and its outcome.
type ActionRecord struct {
	Iteration    int
	AffordanceID string
	ActionType   string
	Parameters   map[string]any
	Success      bool
	Result       map[string]any
	Err          error
	At           time.Time
}

// TaskResult is what the Agent Runtime projects from actionHistory once the
// loop terminates. The runtime never returns raw reasoning as task output;
// the projection is archetype-specific (spec.md §4.5 step 7).
type TaskResult struct {
	Status  string // "completed", "failed", "waiting"
	Output  map[string]any
	Err     error
	History []ActionRecord
}
