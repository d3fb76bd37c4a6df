package policy

// BuiltinRules returns the rules spec.md §4.2 requires to always be
// present, regardless of what an installation layers on top: destructive
// actions require explicit confirmation, writes to protected paths are
// denied outright, external-write actions require prior approval, and the
// planner/observer archetypes are denied actions outside their remit.
func BuiltinRules() []Rule {
	return []Rule{
		{
			ID:       "deny-unconfirmed-destructive",
			Name:     "deny-unconfirmed-destructive",
			Effect:   EffectDeny,
			Priority: 100,
			AppliesToActions: []string{"Delete", "Purge", "Revoke"},
			Conditions: []Condition{
				{Field: "parameters.confirmed", Op: OpNeq, Value: true},
			},
		},
		{
			ID:       "deny-protected-path-write",
			Name:     "deny-protected-path-write",
			Effect:   EffectDeny,
			Priority: 100,
			Conditions: []Condition{
				{Field: "affordance.target", Op: OpMatches, Value: `^/?(system|protected|\.env|credentials)`},
			},
		},
		{
			ID:       "deny-unapproved-external-write",
			Name:     "deny-unapproved-external-write",
			Effect:   EffectDeny,
			Priority: 90,
			AppliesToActions: []string{"ExternalWrite", "Publish", "Send"},
			Conditions: []Condition{
				{Field: "context.hasApproval", Op: OpNeq, Value: true},
			},
		},
		{
			ID:       "deny-planner-executor-actions",
			Name:     "deny-planner-executor-actions",
			Effect:   EffectDeny,
			Priority: 80,
			AppliesToAgentTypes: []string{"planner"},
			AppliesToActions:    []string{"Act"},
		},
		{
			ID:       "deny-observer-mutation",
			Name:     "deny-observer-mutation",
			Effect:   EffectDeny,
			Priority: 80,
			AppliesToAgentTypes: []string{"observer"},
			AppliesToActions:    []string{"Act", "Delete", "Store", "Approve"},
		},
	}
}
