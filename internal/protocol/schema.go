package protocol

// SchemaToCamel rewrites a JSON Schema object's field names from the
// internal snake_case identifiers to the wire-visible camelCase names
// clients see in tools/list's inputSchema/outputSchema. Unlike
// CamelToSnakeDeep/SnakeToCamelDeep, which translate every map key blindly,
// a JSON Schema document mixes field names (in "properties" and "required")
// with schema keywords ("type", "items", "additionalProperties", ...) that
// must never be touched, so this walks the schema shape explicitly instead
// of reusing the generic deep traversal.
func SchemaToCamel(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out, _ := translateSchema(schema).(map[string]any)
	return out
}

func translateSchema(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}

	out := make(map[string]any, len(obj))
	for k, val := range obj {
		out[k] = val
	}

	if props, ok := out["properties"].(map[string]any); ok {
		translated := make(map[string]any, len(props))
		for name, sub := range props {
			translated[snakeToCamelKey(name)] = translateSchema(sub)
		}
		out["properties"] = translated
	}

	if req, ok := out["required"].([]any); ok {
		names := make([]any, len(req))
		for i, name := range req {
			if s, ok := name.(string); ok {
				names[i] = snakeToCamelKey(s)
				continue
			}
			names[i] = name
		}
		out["required"] = names
	}

	if items, ok := out["items"]; ok {
		out["items"] = translateSchema(items)
	}

	return out
}
