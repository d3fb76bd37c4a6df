// Package aat implements the Abstract Agent Type registry: the static
// catalog of agent archetypes, their action spaces, behavioral invariants,
// and parallelization profiles (spec.md §4.1).
package aat

// ActionType identifies a kind of action an affordance may expose
// (e.g. "EmitPlan", "Act", "Store", "Approve").
type ActionType string

// Enforcement classifies how strictly a behavioral invariant is enforced.
type Enforcement string

const (
	// EnforcementStructural invariants are enforced by the Agent Runtime
	// itself: the runtime refuses to terminate a run successfully unless
	// the invariant's required output action was traversed.
	EnforcementStructural Enforcement = "structural"
	// EnforcementAdvisory invariants are surfaced as warnings but never
	// block execution.
	EnforcementAdvisory Enforcement = "advisory"
	// EnforcementAudit invariants are logged for later review only.
	EnforcementAudit Enforcement = "audit"
)

type (
	// AllowedAction names an action type the archetype may take, optionally
	// gated behind a named credential.
	AllowedAction struct {
		Type               ActionType
		RequiresCapability string
	}

	// ForbiddenAction names an action type the archetype may never take,
	// with a human-readable rationale surfaced in violation messages.
	ForbiddenAction struct {
		Type      ActionType
		Rationale string
	}

	// ActionSpace is the allow/forbid catalog for one archetype.
	ActionSpace struct {
		Allowed   []AllowedAction
		Forbidden []ForbiddenAction
	}

	// BehavioralInvariant is a rule the Agent Runtime enforces for this
	// archetype beyond plain action-space membership.
	BehavioralInvariant struct {
		ID                  string
		Enforcement         Enforcement
		RequiredOutputAction ActionType
	}

	// ParallelizationRules describes how many instances of an archetype may
	// run concurrently and what isolation/conflict constraints apply.
	ParallelizationRules struct {
		Parallelizable        bool
		MaxConcurrent         int
		RequiresIsolation     bool
		ConflictsWith         []string
		PreferredEnclaveScope string
	}

	// AAT (Abstract Agent Type) is the static, load-once archetype
	// definition consumed by the Policy Engine and Agent Runtime.
	AAT struct {
		ID                   string
		ActionSpace          ActionSpace
		BehavioralInvariants []BehavioralInvariant
		Parallelization      *ParallelizationRules
	}

	// ValidationResult is returned by ValidateAffordanceForAAT.
	ValidationResult struct {
		Valid  bool
		Reason string
	}
)

// builtinDefaults supplies the default ParallelizationRules for known
// archetypes when an AAT's spec does not declare explicit rules, per
// spec.md §4.1: "planner: 3 concurrent, conflicts with self; executor: up
// to 20, requires isolation; arbiter: singleton; observer: 10; archivist:
// 2; analyst: 3".
var builtinDefaults = map[string]ParallelizationRules{
	"planner": {
		Parallelizable: true, MaxConcurrent: 3,
		ConflictsWith: []string{"planner"},
	},
	"executor": {
		Parallelizable: true, MaxConcurrent: 20, RequiresIsolation: true,
	},
	"arbiter": {
		Parallelizable: false, MaxConcurrent: 1,
		ConflictsWith: []string{"arbiter"},
	},
	"observer": {
		Parallelizable: true, MaxConcurrent: 10,
	},
	"archivist": {
		Parallelizable: true, MaxConcurrent: 2,
	},
	"analyst": {
		Parallelizable: true, MaxConcurrent: 3,
	},
}

// Registry holds the loaded AAT catalog. It is built once at startup and
// read concurrently thereafter; it owns no mutable state once LoadDir (or
// the caller's last Add) returns, so it needs no internal locking.
type Registry struct {
	byID map[string]*AAT
}

// NewRegistry builds an empty registry. Use Add to populate it; LoadDir
// returns a registry already populated from a directory of specs.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*AAT)}
}

// Add registers or replaces an AAT definition.
func (r *Registry) Add(a *AAT) {
	r.byID[a.ID] = a
}

// GetAAT returns the AAT definition for id, or nil if unknown.
func (r *Registry) GetAAT(id string) *AAT {
	return r.byID[id]
}

// IsActionAllowed reports whether the archetype's action space permits
// actionType. An unknown AAT forbids everything (spec.md §4.1 failure
// mode: "unknown AAT ⇒ all actions forbidden").
func (r *Registry) IsActionAllowed(aatID string, actionType ActionType) bool {
	a := r.byID[aatID]
	if a == nil {
		return false
	}
	for _, allowed := range a.ActionSpace.Allowed {
		if allowed.Type == actionType {
			return true
		}
	}
	return false
}

// IsActionForbidden reports whether the archetype's action space explicitly
// forbids actionType. This is independent of IsActionAllowed: an action
// that is neither listed as allowed nor forbidden is simply not allowed.
func (r *Registry) IsActionForbidden(aatID string, actionType ActionType) bool {
	a := r.byID[aatID]
	if a == nil {
		return true
	}
	for _, forbidden := range a.ActionSpace.Forbidden {
		if forbidden.Type == actionType {
			return true
		}
	}
	return false
}

// GetRequiredOutputAction returns the action type of the first structural
// invariant carrying a RequiredOutputAction, or "" if none is declared.
func (r *Registry) GetRequiredOutputAction(aatID string) ActionType {
	a := r.byID[aatID]
	if a == nil {
		return ""
	}
	for _, inv := range a.BehavioralInvariants {
		if inv.Enforcement == EnforcementStructural && inv.RequiredOutputAction != "" {
			return inv.RequiredOutputAction
		}
	}
	return ""
}

// GetParallelizationRules returns the AAT's declared rules, falling back to
// the built-in per-archetype default when the AAT omits them. The archetype
// key used for the built-in lookup is the AAT's own ID, which by convention
// matches one of planner/executor/observer/arbiter/archivist/analyst.
func (r *Registry) GetParallelizationRules(aatID string) ParallelizationRules {
	a := r.byID[aatID]
	if a != nil && a.Parallelization != nil {
		return *a.Parallelization
	}
	if def, ok := builtinDefaults[aatID]; ok {
		return def
	}
	// Unknown archetype with no declared rules: safest default is a
	// singleton, non-parallel archetype so it never silently over-runs
	// its concurrency budget.
	return ParallelizationRules{Parallelizable: false, MaxConcurrent: 1}
}

// ValidateAffordanceForAAT reports whether actionType is a valid next action
// for aatID: allowed by the action space and not explicitly forbidden.
func (r *Registry) ValidateAffordanceForAAT(aatID string, actionType ActionType) ValidationResult {
	a := r.byID[aatID]
	if a == nil {
		return ValidationResult{Valid: false, Reason: "unknown agent type " + aatID}
	}
	for _, forbidden := range a.ActionSpace.Forbidden {
		if forbidden.Type == actionType {
			reason := forbidden.Rationale
			if reason == "" {
				reason = "action forbidden for archetype " + aatID
			}
			return ValidationResult{Valid: false, Reason: reason}
		}
	}
	if !r.IsActionAllowed(aatID, actionType) {
		return ValidationResult{Valid: false, Reason: "action not in allowed set for archetype " + aatID}
	}
	return ValidationResult{Valid: true}
}
