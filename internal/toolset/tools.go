package toolset

import (
	"encoding/json"

	"github.com/chainsafe/canton-mcp-server/internal/tool"
)

// EchoParams is the echo tool's input shape.
type EchoParams struct {
	UserInput string `json:"user_input" mapstructure:"user_input" jsonschema:"required,description=Text to echo back"`
}

// EchoResult is the echo tool's terminal payload.
type EchoResult struct {
	OutputData string `json:"output_data" mapstructure:"output_data" jsonschema:"required,description=The echoed text"`
}

// ValidateParams is the validate tool's input shape.
type ValidateParams struct {
	Payload string `json:"payload" mapstructure:"payload" jsonschema:"required,description=Raw JSON payload to validate"`
}

// Descriptors returns the tool catalogue this server registers at startup:
// a free echo tool and a $0.10-per-call validate tool, exercising both arms
// of the payment gate.
func Descriptors() []*tool.Descriptor {
	return []*tool.Descriptor{echoDescriptor(), validateDescriptor()}
}

func echoDescriptor() *tool.Descriptor {
	return &tool.Descriptor{
		Name:             "echo",
		HumanDescription: "Echoes the given text back, unchanged.",
		ParamSchema:      schemaFor[EchoParams](),
		ResultSchema:     schemaFor[EchoResult](),
		Pricing:          tool.Free{},
		Handler:          echoHandler,
	}
}

func echoHandler(ctx *tool.Context) error {
	var p EchoParams
	if err := ctx.BindParams(&p); err != nil {
		ctx.Error(err.Error(), "invalid_params")
		return nil
	}
	ctx.Structured(map[string]any{"output_data": p.UserInput}, "echoed")
	return nil
}

func validateDescriptor() *tool.Descriptor {
	return &tool.Descriptor{
		Name:             "validate",
		HumanDescription: "Validates that the given payload is well-formed JSON.",
		ParamSchema:      schemaFor[ValidateParams](),
		ResultSchema:     map[string]any{"type": "object", "properties": map[string]any{"valid": map[string]any{"type": "boolean"}}},
		Pricing:          tool.Fixed{PriceUSD: 0.10},
		Handler:          validateHandler,
	}
}

func validateHandler(ctx *tool.Context) error {
	var p ValidateParams
	if err := ctx.BindParams(&p); err != nil {
		ctx.Error(err.Error(), "invalid_params")
		return nil
	}

	ctx.Progress(0, 1, "parsing payload")

	if !json.Valid([]byte(p.Payload)) {
		ctx.Structured(map[string]any{"valid": false, "reason": "payload is not well-formed JSON"}, "invalid")
		return nil
	}
	ctx.Structured(map[string]any{"valid": true}, "valid")
	return nil
}
