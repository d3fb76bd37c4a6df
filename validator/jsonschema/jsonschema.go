// Package jsonschema implements validator.ParamValidator using JSON Schema
// documents compiled on demand and cached by schema reference.
package jsonschema

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/fluxgraph/workflow-core/validator"
)

// SchemaSource resolves a schemaRef to a raw JSON Schema document.
type SchemaSource interface {
	Resolve(ctx context.Context, schemaRef string) (json.RawMessage, error)
}

// StaticSource is a SchemaSource backed by an in-process map, suitable for
// schemas registered alongside an AAT's action space.
type StaticSource map[string]json.RawMessage

// Resolve implements SchemaSource.
func (s StaticSource) Resolve(_ context.Context, schemaRef string) (json.RawMessage, error) {
	doc, ok := s[schemaRef]
	if !ok {
		return nil, fmt.Errorf("no schema registered for ref %q", schemaRef)
	}
	return doc, nil
}

// Validator validates parameters against compiled JSON Schema documents.
// Compiled schemas are cached by schemaRef since affordances are traversed
// repeatedly with the same schema.
type Validator struct {
	source SchemaSource

	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

// New builds a Validator resolving schemas from source.
func New(source SchemaSource) *Validator {
	return &Validator{source: source, schemas: make(map[string]*jsonschema.Schema)}
}

// Validate implements validator.ParamValidator.
func (v *Validator) Validate(ctx context.Context, schemaRef string, params map[string]any) (validator.Result, error) {
	if schemaRef == "" {
		return validator.Result{OK: true}, nil
	}

	schema, err := v.compiled(ctx, schemaRef)
	if err != nil {
		return validator.Result{}, err
	}

	// jsonschema validates against decoded JSON values (map[string]any is
	// already in that shape, but round-tripping normalizes numeric types).
	raw, err := json.Marshal(params)
	if err != nil {
		return validator.Result{}, fmt.Errorf("marshal params: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return validator.Result{}, fmt.Errorf("unmarshal params: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			return validator.Result{Violations: flatten(verr)}, nil
		}
		return validator.Result{Violations: []validator.Violation{{Message: err.Error()}}}, nil
	}
	return validator.Result{OK: true}, nil
}

func (v *Validator) compiled(ctx context.Context, schemaRef string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	if schema, ok := v.schemas[schemaRef]; ok {
		v.mu.Unlock()
		return schema, nil
	}
	v.mu.Unlock()

	raw, err := v.source.Resolve(ctx, schemaRef)
	if err != nil {
		return nil, fmt.Errorf("resolve schema %q: %w", schemaRef, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema %q: %w", schemaRef, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaRef, doc); err != nil {
		return nil, fmt.Errorf("add schema resource %q: %w", schemaRef, err)
	}
	schema, err := c.Compile(schemaRef)
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", schemaRef, err)
	}

	v.mu.Lock()
	v.schemas[schemaRef] = schema
	v.mu.Unlock()
	return schema, nil
}

func flatten(verr *jsonschema.ValidationError) []validator.Violation {
	var out []validator.Violation
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, validator.Violation{
				Path:    e.InstanceLocation,
				Message: e.Error(),
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}
