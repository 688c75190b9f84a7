// SPDX-License-Identifier: AGPL-3.0
// Copyright 2026 Canton MCP Server Authors
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package toolset provides the tool catalogue this server ships with: a
// free "echo" tool and a fixed-price "validate" tool, registered at startup
// by cmd/mcpserver. Param schemas, and echo's result schema, are generated
// by reflecting the tools' Go structs; validate's result schema is written
// out as a literal map.
package toolset

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// schemaFor reflects T into the object-shaped JSON Schema this server's
// tools/list advertises (internal identifiers stay snake_case; the wire
// boundary camelCases them via protocol.SchemaToCamel).
func schemaFor[T any]() map[string]any {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("toolset: marshal schema: %v", err))
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		panic(fmt.Sprintf("toolset: unmarshal schema: %v", err))
	}
	delete(raw, "$schema")
	delete(raw, "$id")

	if raw["type"] != "object" {
		return raw
	}

	out := map[string]any{
		"type":       "object",
		"properties": raw["properties"],
	}
	if required, ok := raw["required"]; ok {
		out["required"] = required
	}
	if addl, ok := raw["additionalProperties"]; ok {
		out["additionalProperties"] = addl
	}
	return out
}
