package policy

import "github.com/fluxgraph/workflow-core/coretypes"

// Modality classifies a deontic constraint the way spec.md §4.2 does:
// prohibition fails if its condition holds, obligation fails if its
// condition does not hold, permission never fails.
type Modality string

const (
	ModalityProhibition Modality = "prohibition"
	ModalityObligation   Modality = "obligation"
	ModalityPermission   Modality = "permission"
)

// DeonticConstraint is a registered, engine-wide constraint evaluated
// against every proposal, in addition to the inline constraints carried on
// the ContextView itself.
type DeonticConstraint struct {
	ID               string
	Modality         Modality
	Condition        Condition
	EnforcementLevel coretypes.EnforcementLevel
}

// violated reports whether this constraint's modality is breached given
// whether its Condition held.
func (c DeonticConstraint) violated(held bool) bool {
	switch c.Modality {
	case ModalityProhibition:
		return held
	case ModalityObligation:
		return !held
	case ModalityPermission:
		return false
	default:
		return false
	}
}
