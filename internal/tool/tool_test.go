package tool

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/canton-mcp-server/internal/frame"
)

func TestDynamicPricing_Clamps(t *testing.T) {
	d := Dynamic{MinUSD: 0.05, MaxUSD: 1.00, Compute: func(args map[string]any) float64 {
		return args["n"].(float64) * 0.01
	}}

	assert.Equal(t, 0.05, d.RequiredUSD(map[string]any{"n": 1.0}))
	assert.Equal(t, 1.00, d.RequiredUSD(map[string]any{"n": 1000.0}))
	assert.InDelta(t, 0.5, d.RequiredUSD(map[string]any{"n": 50.0}), 1e-9)
}

func TestRegistry_DuplicateNameFails(t *testing.T) {
	r := NewRegistry()
	d := &Descriptor{Name: "echo", Handler: func(ctx *Context) error { return nil }}
	require.NoError(t, r.Register(d))
	require.Error(t, r.Register(d))
}

func TestContext_OnlyOneTerminalFrame(t *testing.T) {
	var cancelled atomic.Bool
	ctx := NewContext(context.Background(), nil, &cancelled, PaymentView{}, 4)

	go func() {
		ctx.Progress(1, 2, "working")
		ctx.Structured(map[string]any{"ok": true}, "")
		ctx.Structured(map[string]any{"ok": false}, "") // must be ignored
		ctx.Close()
	}()

	var frames []frame.Frame
	for f := range ctx.Frames() {
		frames = append(frames, f)
	}

	require.Len(t, frames, 2)
	assert.Equal(t, frame.KindProgress, frames[0].Type)
	assert.Equal(t, frame.KindStructured, frames[1].Type)
	assert.True(t, ctx.SentTerminal())
}

func TestContext_BindParams(t *testing.T) {
	var cancelled atomic.Bool
	ctx := NewContext(context.Background(), map[string]any{"user_input": "hi"}, &cancelled, PaymentView{}, 1)

	var typed struct {
		UserInput string `mapstructure:"user_input"`
	}
	require.NoError(t, ctx.BindParams(&typed))
	assert.Equal(t, "hi", typed.UserInput)
}
