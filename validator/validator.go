// Package validator defines the ParamValidator contract the Context Broker
// uses to check TRAVERSE parameters against an affordance's declared schema
// before policy evaluation runs.
package validator

import "context"

// Violation describes a single schema violation.
type Violation struct {
	Path    string
	Message string
}

// Result is the outcome of validating a set of parameters.
type Result struct {
	OK         bool
	Violations []Violation
}

// ParamValidator checks parameters for an affordance against its
// params-schema reference. schemaRef is opaque to callers; concrete
// validators resolve it however their backend stores schemas (registered
// name, file path, inline JSON document id).
type ParamValidator interface {
	Validate(ctx context.Context, schemaRef string, params map[string]any) (Result, error)
}
