package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateArgs_MissingRequiredField(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"user_input": map[string]any{"type": "string"}},
		"required":   []any{"user_input"},
	}

	problems := ValidateArgs(schema, map[string]any{})
	assert.Equal(t, map[string]string{"user_input": "required field is missing"}, problems)
}

func TestValidateArgs_TypeMismatch(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"count": map[string]any{"type": "string"}},
	}

	problems := ValidateArgs(schema, map[string]any{"count": 3.0})
	assert.Equal(t, map[string]string{"count": "expected string, got number"}, problems)
}

func TestValidateArgs_ValidArgsReturnNil(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"user_input": map[string]any{"type": "string"},
			"count":      map[string]any{"type": "integer"},
		},
		"required": []any{"user_input"},
	}

	problems := ValidateArgs(schema, map[string]any{"user_input": "hi", "count": 2.0})
	assert.Nil(t, problems)
}

func TestValidateArgs_NilSchemaAcceptsAnything(t *testing.T) {
	assert.Nil(t, ValidateArgs(nil, map[string]any{"whatever": true}))
}
