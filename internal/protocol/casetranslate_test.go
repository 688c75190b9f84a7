package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaseTranslate_RoundTrip(t *testing.T) {
	camel := map[string]any{
		"userInput": "hi",
		"nested": map[string]any{
			"outputData": 1.0,
			"listField":  []any{map[string]any{"innerValue": true}},
		},
	}

	snake := CamelToSnakeDeep(camel)
	back := SnakeToCamelDeep(snake)

	assert.Equal(t, camel, back)
}

func TestCamelToSnake_Keys(t *testing.T) {
	in := map[string]any{"userInput": "x", "alreadyLower": "y", "a": "z"}
	out := CamelToSnakeDeep(in).(map[string]any)

	assert.Contains(t, out, "user_input")
	assert.Contains(t, out, "already_lower")
	assert.Contains(t, out, "a")
}

func TestSnakeToCamel_Keys(t *testing.T) {
	in := map[string]any{"output_data": "x", "a": "z"}
	out := SnakeToCamelDeep(in).(map[string]any)

	assert.Contains(t, out, "outputData")
	assert.Contains(t, out, "a")
}
