// Package orchestrator implements the Concurrent Orchestrator: the task
// queue, agent pool, scheduling tick, plan expansion, and checkpointing of
// spec.md §4.6.
package orchestrator

// ResourceLimits caps the three shared-resource dimensions the scheduling
// tick gates dispatch on (spec.md §4.6 step 2).
type ResourceLimits struct {
	MaxTokensPerMinute  float64
	MaxCostPerHourUSD   float64
	MaxConcurrentCalls  int
}

// ConcurrencyPolicy is accepted at Orchestrator construction (spec.md §6).
type ConcurrencyPolicy struct {
	MaxTotalAgents int
	MaxPerType     map[string]int
	ConflictMatrix map[string][]string
	ResourceLimits ResourceLimits
}

// DefaultConcurrencyPolicy returns the defaults spec.md §6 names: planners
// 3, executors 5, analysts 3, observers 5, arbiter 1, archivist 2; arbiter
// conflicts with arbiter; planner conflicts with planner; 100k tokens/min;
// $10/hr; 10 concurrent calls.
func DefaultConcurrencyPolicy() ConcurrencyPolicy {
	return ConcurrencyPolicy{
		MaxTotalAgents: 10,
		MaxPerType: map[string]int{
			"planner":   3,
			"executor":  5,
			"analyst":   3,
			"observer":  5,
			"arbiter":   1,
			"archivist": 2,
		},
		ConflictMatrix: map[string][]string{
			"arbiter": {"arbiter"},
			"planner": {"planner"},
		},
		ResourceLimits: ResourceLimits{
			MaxTokensPerMinute: 100_000,
			MaxCostPerHourUSD:  10,
			MaxConcurrentCalls: 10,
		},
	}
}
