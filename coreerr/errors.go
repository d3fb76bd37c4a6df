// Package coreerr defines the error-kind taxonomy shared across the workflow
// engine's components. Callers distinguish failure modes programmatically via
// Kind rather than matching on message strings.
package coreerr

import "fmt"

// Kind enumerates the distinct failure modes the core can produce. It is not
// a type hierarchy: every Error carries exactly one Kind.
type Kind string

const (
	// KindContextExpired indicates the issued ContextView is past its
	// expiresAt or is otherwise unknown to the broker.
	KindContextExpired Kind = "context-expired"
	// KindAffordanceUnknown indicates the referenced affordance is not
	// present in the view.
	KindAffordanceUnknown Kind = "affordance-unknown"
	// KindAffordanceDisabled indicates the affordance is present but not
	// enabled for the calling agent.
	KindAffordanceDisabled Kind = "affordance-disabled"
	// KindParamsInvalid indicates a parameter schema violation reported by
	// the ParamValidator collaborator.
	KindParamsInvalid Kind = "params-invalid"
	// KindPolicyDenied indicates one or more strict rules or constraints
	// denied the proposed action.
	KindPolicyDenied Kind = "policy-denied"
	// KindCredentialsInsufficient indicates a required credential was not
	// satisfied.
	KindCredentialsInsufficient Kind = "credentials-insufficient"
	// KindAATViolation indicates the action falls outside the agent's
	// action space.
	KindAATViolation Kind = "aat-violation"
	// KindStructuralMissingRequiredOutput indicates the agent terminated
	// without traversing its required output action.
	KindStructuralMissingRequiredOutput Kind = "structural-missing-required-output"
	// KindEffectFailed indicates the effect handler raised an error.
	KindEffectFailed Kind = "effect-failed"
	// KindReasonerFailure indicates the reasoner returned a malformed
	// Decision or raised an error.
	KindReasonerFailure Kind = "reasoner-failure"
	// KindMaxIterationsReached indicates the Agent Runtime hit its
	// iteration cap.
	KindMaxIterationsReached Kind = "max-iterations-reached"
	// KindConcurrencyLimited is informational; it never fails a task.
	KindConcurrencyLimited Kind = "concurrency-limited"
	// KindResourceLimitReached is informational; it pauses dispatch.
	KindResourceLimitReached Kind = "resource-limit-reached"
	// KindConflictUnresolved indicates a Shared Context conflict under the
	// "manual" resolution strategy awaiting a resolver decision.
	KindConflictUnresolved Kind = "conflict-unresolved"
	// KindAccessDenied indicates a Shared Context operation was attempted
	// without the access level §4.7 requires for it.
	KindAccessDenied Kind = "access-denied"
)

// Error is the structured error type returned by core components. It chains
// via Cause so errors.Is/errors.As continue to work across wrapping, while
// Kind lets callers branch without parsing the message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf formats a message and returns an Error of the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving it as Cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is a *Error with the same Kind, allowing
// errors.Is(err, coreerr.New(coreerr.KindPolicyDenied, "")) style checks as
// well as direct kind comparisons via KindOf.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error. The second
// return value is false when err carries no known Kind.
func KindOf(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if ce, ok := err.(*Error); ok {
			e = ce
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	if e == nil {
		return "", false
	}
	return e.Kind, true
}

// Recoverable reports whether an error of this kind, raised within a single
// Agent Runtime iteration, should be retried in the next iteration with a
// fresh ContextView rather than terminating the run. Per spec.md §7, every
// kind other than effect-failed is recoverable at the iteration level.
func Recoverable(kind Kind) bool {
	return kind != KindEffectFailed
}
