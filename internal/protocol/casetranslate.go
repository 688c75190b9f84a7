package protocol

import (
	"strings"
	"unicode"
)

// CamelToSnakeDeep and SnakeToCamelDeep implement the wire-boundary case
// translation: object keys are camelCase on the wire and snake_case
// internally, translated by a single recursive traversal at encode/decode
// rather than type-level name remapping.

// CamelToSnakeDeep walks an arbitrary decoded JSON value (map[string]any,
// []any, or scalar) converting every object key from camelCase to
// snake_case. Used when decoding `params.arguments` before validating
// against a tool's param_schema.
func CamelToSnakeDeep(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[camelToSnakeKey(k)] = CamelToSnakeDeep(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = CamelToSnakeDeep(child)
		}
		return out
	default:
		return v
	}
}

// SnakeToCamelDeep is the inverse of CamelToSnakeDeep, applied to a
// Structured frame's result payload before it is sent to the client.
func SnakeToCamelDeep(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[snakeToCamelKey(k)] = SnakeToCamelDeep(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = SnakeToCamelDeep(child)
		}
		return out
	default:
		return v
	}
}

func camelToSnakeKey(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func snakeToCamelKey(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
