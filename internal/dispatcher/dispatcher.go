// Package dispatcher runs a registered tool's generator-style Handler,
// drains the frames it yields in order onto an SSE sink, and polls the
// request's cancel signal between yields so a cooperative cancellation can
// abandon a stalled handler without forcibly killing it.
package dispatcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chainsafe/canton-mcp-server/internal/frame"
	"github.com/chainsafe/canton-mcp-server/internal/tool"
)

// Sink is the write side of an open SSE stream. The dispatcher never knows
// about HTTP; internal/transport implements Sink over http.ResponseWriter.
type Sink interface {
	Send(f frame.Frame) error
}

// cancelPollInterval is how often the dispatcher checks a stalled handler's
// cancel signal while waiting on its next yield.
const cancelPollInterval = 50 * time.Millisecond

// Outcome summarizes a completed tool invocation for telemetry and
// settlement decisions.
type Outcome struct {
	ExecMS    int64
	Success   bool
	Cancelled bool
	Terminal  frame.Frame
}

// Run drives desc.Handler to completion (or abandonment), writing every
// Frame it yields to sink in order, and returns exactly once a terminal
// Frame has been written. Exactly one terminal frame goes out per call, and
// nothing follows it. A cancelled ctx (client disconnected mid-stream) is
// treated like a cooperative cancellation: the handler is abandoned and the
// outcome is marked cancelled.
func Run(ctx context.Context, sink Sink, desc *tool.Descriptor, args map[string]any, cancelSignal *atomic.Bool, payment tool.PaymentView) Outcome {
	start := time.Now()
	tctx := tool.NewContext(ctx, args, cancelSignal, payment, 8)

	go runHandler(desc, tctx)

	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()

	var outcome Outcome

	for {
		select {
		case f, ok := <-tctx.Frames():
			if !ok {
				if outcome.Terminal.Type == "" {
					outcome.Terminal = frame.Error("internal", "handler returned without a terminal frame", nil)
					_ = sink.Send(outcome.Terminal)
				}
				outcome.ExecMS = time.Since(start).Milliseconds()
				outcome.Success = outcome.Terminal.Type == frame.KindStructured
				return outcome
			}

			_ = sink.Send(f)

			if f.IsTerminal() {
				outcome.Terminal = f
				outcome.ExecMS = time.Since(start).Milliseconds()
				outcome.Success = f.Type == frame.KindStructured
				outcome.Cancelled = f.Type == frame.KindError && f.Code == "cancelled"
				return outcome
			}

		case <-ctx.Done():
			// Transport drop: the client went away mid-stream. The sink is
			// dead, but the terminal send is still attempted so the
			// one-terminal-frame accounting holds on sinks that outlive the
			// connection (tests, buffered recorders).
			outcome.Terminal = frame.Cancelled()
			_ = sink.Send(outcome.Terminal)
			outcome.ExecMS = time.Since(start).Milliseconds()
			outcome.Success = false
			outcome.Cancelled = true
			tctx.Abandon()
			return outcome

		case <-ticker.C:
			if cancelSignal.Load() {
				outcome.Terminal = frame.Cancelled()
				_ = sink.Send(outcome.Terminal)
				outcome.ExecMS = time.Since(start).Milliseconds()
				outcome.Success = false
				outcome.Cancelled = true
				// Nobody will read tctx.Frames() again; the handler's
				// goroutine may still be running and would otherwise block
				// forever trying to yield into it (see tool.Context.Abandon).
				tctx.Abandon()
				return outcome
			}
		}
	}
}

// runHandler executes desc.Handler, converting a panic into an internal
// Error frame (handler failures never become transport 500s once the
// stream is open) and always closing the frame channel once the handler
// has returned.
func runHandler(desc *tool.Descriptor, tctx *tool.Context) {
	defer func() {
		if r := recover(); r != nil {
			if !tctx.SentTerminal() {
				tctx.Error(fmt.Sprintf("handler panic: %v", r), "internal")
			}
		}
		tctx.Close()
	}()

	if err := desc.Handler(tctx); err != nil && !tctx.SentTerminal() {
		tctx.Error(err.Error(), "internal")
	}
}
