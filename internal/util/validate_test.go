package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParams_AcceptsMatchingArgs(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{"type": "string"},
		},
		"required": []string{"to"},
	}
	assert.NoError(t, ValidateParams(map[string]any{"to": "sales"}, schema))
}

func TestValidateParams_RejectsMissingRequired(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{"type": "string"},
		},
		"required": []string{"to"},
	}
	assert.Error(t, ValidateParams(map[string]any{}, schema))
}

func TestValidateParams_RejectsWrongType(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"count": map[string]any{"type": "integer"},
		},
	}
	assert.Error(t, ValidateParams(map[string]any{"count": "three"}, schema))
}

func TestValidateParams_EmptySchemaAllowsAnything(t *testing.T) {
	assert.NoError(t, ValidateParams(map[string]any{"anything": 1}, nil))
}

func TestCreateSchema_FromStruct(t *testing.T) {
	type navigateArgs struct {
		To     string `json:"to" description:"Target agent name"`
		Reason string `json:"reason,omitempty"`
	}
	schema := CreateSchema(navigateArgs{})

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "to")
	require.Contains(t, props, "reason")

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"to"}, required)

	// Derived schemas must be usable by the validator.
	assert.NoError(t, ValidateParams(map[string]any{"to": "sales"}, schema))
	assert.Error(t, ValidateParams(map[string]any{"to": 5}, schema))
}

func TestCreateSchema_EnumTagConstrainsValues(t *testing.T) {
	type navigateArgs struct {
		To string `json:"to" enum:"sales,refund"`
	}
	schema := CreateSchema(navigateArgs{})

	props := schema["properties"].(map[string]any)
	to := props["to"].(map[string]any)
	assert.Equal(t, []any{"sales", "refund"}, to["enum"])

	assert.NoError(t, ValidateParams(map[string]any{"to": "refund"}, schema))
	assert.Error(t, ValidateParams(map[string]any{"to": "billing"}, schema))
}

func TestCreateSchema_NonStructYieldsEmptyObject(t *testing.T) {
	schema := CreateSchema("not a struct")
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
	assert.NotContains(t, schema, "required")
}
