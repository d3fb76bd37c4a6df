package jsonschema_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/workflow-core/validator/jsonschema"
)

const paramsSchema = `{
	"type": "object",
	"required": ["amount"],
	"properties": {
		"amount": {"type": "number", "minimum": 0}
	}
}`

func newValidator() *jsonschema.Validator {
	source := jsonschema.StaticSource{
		"transfer-params": json.RawMessage(paramsSchema),
	}
	return jsonschema.New(source)
}

func TestValidateEmptySchemaRefAlwaysPasses(t *testing.T) {
	v := newValidator()
	result, err := v.Validate(context.Background(), "", map[string]any{"anything": true})
	require.NoError(t, err)
	require.True(t, result.OK)
}

func TestValidatePassesForConformingParams(t *testing.T) {
	v := newValidator()
	result, err := v.Validate(context.Background(), "transfer-params", map[string]any{"amount": 10.5})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Empty(t, result.Violations)
}

func TestValidateReportsViolationsForMissingRequiredField(t *testing.T) {
	v := newValidator()
	result, err := v.Validate(context.Background(), "transfer-params", map[string]any{})
	require.NoError(t, err)
	require.False(t, result.OK)
	require.NotEmpty(t, result.Violations)
}

func TestValidateReportsViolationsForOutOfRangeValue(t *testing.T) {
	v := newValidator()
	result, err := v.Validate(context.Background(), "transfer-params", map[string]any{"amount": -5})
	require.NoError(t, err)
	require.False(t, result.OK)
	require.NotEmpty(t, result.Violations)
}

func TestValidateUnknownSchemaRefErrors(t *testing.T) {
	v := newValidator()
	_, err := v.Validate(context.Background(), "does-not-exist", map[string]any{})
	require.Error(t, err)
}

func TestValidateCachesCompiledSchemaAcrossCalls(t *testing.T) {
	v := newValidator()
	for i := 0; i < 3; i++ {
		result, err := v.Validate(context.Background(), "transfer-params", map[string]any{"amount": 1})
		require.NoError(t, err)
		require.True(t, result.OK)
	}
}
