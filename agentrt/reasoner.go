// Package agentrt implements the Agent Runtime: the per-agent decision loop
// that fetches a ContextView, consults a Reasoner, enforces archetype
// invariants, traverses one affordance per iteration, and projects a
// TaskResult from the actions actually taken.
package agentrt

import (
	"context"

	"github.com/fluxgraph/workflow-core/coretypes"
)

// Decision is what a Reasoner proposes for one iteration of the loop.
type Decision struct {
	Reasoning          string
	SelectedAffordanceID string
	Parameters         map[string]any
	ShouldContinue     bool
	Message            string
}

// ToolResult is what RunWithTools reports back to the loop.
type ToolResult struct {
	Success bool
	Output  map[string]any
	Err     error
}

// Reasoner is the external collaborator that proposes actions. The core
// never performs natural-language reasoning itself (spec.md §1 Non-goals).
type Reasoner interface {
	ReasonAboutContext(ctx context.Context, systemPrompt string, view coretypes.ContextView, task coretypes.Task, previousActions []ActionRecord) (Decision, error)
}

// ToolRunner is an optional capability a Reasoner may also implement: when
// present, the executor archetype's loop invokes it before each affordance
// traversal and, when the call returns no error, passes its result to the
// traversal as the "executionResult" parameter.
type ToolRunner interface {
	RunWithTools(ctx context.Context, task coretypes.Task, allowedTools []string) (ToolResult, error)
}
