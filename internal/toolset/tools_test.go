package toolset

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/canton-mcp-server/internal/frame"
	"github.com/chainsafe/canton-mcp-server/internal/tool"
)

func runHandler(t *testing.T, desc *tool.Descriptor, args map[string]any) frame.Frame {
	t.Helper()
	var cancelled atomic.Bool
	ctx := tool.NewContext(context.Background(), args, &cancelled, tool.PaymentView{}, 8)

	done := make(chan struct{})
	go func() {
		_ = desc.Handler(ctx)
		ctx.Close()
		close(done)
	}()

	var terminal frame.Frame
	for f := range ctx.Frames() {
		if f.IsTerminal() {
			terminal = f
		}
	}
	<-done
	return terminal
}

func TestEchoDescriptor_Roundtrips(t *testing.T) {
	desc := echoDescriptor()
	assert.Equal(t, "echo", desc.Name)
	assert.IsType(t, tool.Free{}, desc.Pricing)

	f := runHandler(t, desc, map[string]any{"user_input": "hi there"})
	require.Equal(t, frame.KindStructured, f.Type)
	assert.Equal(t, "hi there", f.Result["output_data"])
}

func TestValidateDescriptor_ValidPayload(t *testing.T) {
	desc := validateDescriptor()
	assert.IsType(t, tool.Fixed{}, desc.Pricing)
	assert.Equal(t, 0.10, desc.Pricing.RequiredUSD(nil))

	f := runHandler(t, desc, map[string]any{"payload": `{"a":1}`})
	require.Equal(t, frame.KindStructured, f.Type)
	assert.Equal(t, true, f.Result["valid"])
}

func TestValidateDescriptor_InvalidPayload(t *testing.T) {
	desc := validateDescriptor()
	f := runHandler(t, desc, map[string]any{"payload": `{not json`})
	require.Equal(t, frame.KindStructured, f.Type)
	assert.Equal(t, false, f.Result["valid"])
}
