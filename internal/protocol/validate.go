package protocol

import "fmt"

// ValidateArgs checks a case-translated argument map against a tool's
// object-shaped param schema: required fields must be present, and fields
// with a declared scalar/container type must match it. Returns per-field
// detail suitable for an InvalidParams error's data. Deeper JSON Schema
// keywords (format, enum, bounds) are left to the handler's own decoding.
func ValidateArgs(schema map[string]any, args map[string]any) map[string]string {
	if schema == nil {
		return nil
	}

	problems := map[string]string{}

	if required, ok := schema["required"].([]any); ok {
		for _, name := range required {
			field, ok := name.(string)
			if !ok {
				continue
			}
			if _, present := args[field]; !present {
				problems[field] = "required field is missing"
			}
		}
	}

	props, _ := schema["properties"].(map[string]any)
	for field, sub := range props {
		val, present := args[field]
		if !present {
			continue
		}
		subSchema, ok := sub.(map[string]any)
		if !ok {
			continue
		}
		declared, ok := subSchema["type"].(string)
		if !ok {
			continue
		}
		if actual := jsonTypeOf(val); actual != "" && !typeMatches(declared, actual) {
			problems[field] = fmt.Sprintf("expected %s, got %s", declared, actual)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return problems
}

func jsonTypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return ""
	}
}

func typeMatches(declared, actual string) bool {
	if declared == actual {
		return true
	}
	// JSON numbers decode as float64, so any number satisfies integer;
	// fractional values are not rejected here.
	return declared == "integer" && actual == "number"
}
