package coretypes

// Credentials carries the verified credential bundle a caller presents when
// requesting a ContextView or traversing an affordance. It is opaque to the
// core beyond the set of credential names it satisfies; issuance and token
// formats are out of scope (spec.md §1).
type Credentials struct {
	AgentDID string
	AgentType string
	Grants   []string
}

// Satisfies reports whether the credential bundle grants every name in
// required.
func (c Credentials) Satisfies(required []string) bool {
	if len(required) == 0 {
		return true
	}
	granted := make(map[string]struct{}, len(c.Grants))
	for _, g := range c.Grants {
		granted[g] = struct{}{}
	}
	for _, req := range required {
		if _, ok := granted[req]; !ok {
			return false
		}
	}
	return true
}

// TokenUsage tracks the cumulative resource consumption attributed to one
// agent instance.
type TokenUsage struct {
	PromptTokens     int64
	CompletionTokens int64
	CostUSD          float64
}

// AgentStatus is the coarse state of an agent instance in the pool.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentBusy    AgentStatus = "busy"
	AgentStopped AgentStatus = "stopped"
)

// AgentInstance is a live member of the Orchestrator's worker pool, created
// lazily up to per-type and global caps (spec.md §3).
type AgentInstance struct {
	ID            string
	DID           string
	AATID         string
	Credentials   Credentials
	Status        AgentStatus
	Busy          bool
	CurrentTaskID string
	TokenUsage    TokenUsage
}
