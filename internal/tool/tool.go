// Copyright 2026 Canton MCP Server Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tool provides the catalogue of registered tools and the
// per-invocation Context a handler sees. Handlers are modeled as
// generator-style functions that push Frames into a channel the dispatcher
// drains; the push-channel shape lets cancellation be observed from outside
// the handler's own goroutine.
package tool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"

	"github.com/chainsafe/canton-mcp-server/internal/frame"
	"github.com/chainsafe/canton-mcp-server/internal/registry"
)

// Pricing is a closed sum type: Free | Fixed(usd) | Dynamic(min, max, fn).
// Modeled as an interface with an unexported marker method rather than
// nullable fields.
type Pricing interface {
	isPricing()
	// RequiredUSD computes the price to charge for a call with the given
	// (already case-translated) arguments.
	RequiredUSD(args map[string]any) float64
}

// Free tools bypass the payment gate entirely.
type Free struct{}

func (Free) isPricing() {}

func (Free) RequiredUSD(map[string]any) float64 { return 0 }

// Fixed charges the same price_usd on every call.
type Fixed struct {
	PriceUSD float64
}

func (Fixed) isPricing() {}
func (f Fixed) RequiredUSD(map[string]any) float64 {
	return f.PriceUSD
}

// Dynamic clamps a per-call computed price into [MinUSD, MaxUSD].
type Dynamic struct {
	MinUSD, MaxUSD float64
	Compute        func(args map[string]any) float64
}

func (Dynamic) isPricing() {}
func (d Dynamic) RequiredUSD(args map[string]any) float64 {
	usd := d.Compute(args)
	if usd < d.MinUSD {
		return d.MinUSD
	}
	if usd > d.MaxUSD {
		return d.MaxUSD
	}
	return usd
}

// Handler is the generator-style tool body. It receives a Context and must
// call exactly one terminal method (Structured or Error) on it before
// returning; a return with no terminal frame sent is a protocol violation
// surfaced by the dispatcher as an internal Error frame.
type Handler func(ctx *Context) error

// Descriptor is the immutable, registered-once tool definition.
type Descriptor struct {
	Name             string
	HumanDescription string
	ParamSchema      map[string]any
	ResultSchema     map[string]any
	Pricing          Pricing
	Handler          Handler
}

// PaymentView is the read-only payment summary a Context exposes to
// handlers. It intentionally duplicates only the fields a handler body could
// plausibly need, so this package never imports the payment package.
type PaymentView struct {
	Present     bool
	Rail        string
	RequiredUSD float64
	CostPaid    float64
	Currency    string
}

// Context is instantiated once per tools/call and passed to the handler.
type Context struct {
	ctx        context.Context
	rawArgs    map[string]any
	frames     chan frame.Frame
	cancelled  *atomic.Bool
	payment    PaymentView
	sentTerm   atomic.Bool
	abandoned  chan struct{}
	abandonOne sync.Once
}

// NewContext builds a Context over a buffered frame channel. bufSize should
// be small; the dispatcher drains continuously so backpressure is rare.
func NewContext(ctx context.Context, args map[string]any, cancelled *atomic.Bool, payment PaymentView, bufSize int) *Context {
	return &Context{
		ctx:       ctx,
		rawArgs:   args,
		frames:    make(chan frame.Frame, bufSize),
		cancelled: cancelled,
		payment:   payment,
		abandoned: make(chan struct{}),
	}
}

// Frames returns the channel the dispatcher drains. Closed once the handler
// returns (see Close).
func (c *Context) Frames() <-chan frame.Frame { return c.frames }

// Close closes the frame channel. Must only be called by the dispatcher
// after the handler goroutine has returned.
func (c *Context) Close() { close(c.frames) }

// Abandon tells this Context that nobody will ever drain Frames() again
// (the dispatcher gave up waiting on a cancelled, still-running handler).
// Any Progress/Log/Structured/Error call the handler makes afterward stops
// blocking on the full/unread channel and is silently discarded instead,
// so the handler's goroutine can still return and get reaped rather than
// leaking forever on a send nobody will ever receive.
func (c *Context) Abandon() {
	c.abandonOne.Do(func() { close(c.abandoned) })
}

// Context returns the request-scoped context.Context, for handlers that make
// their own outbound calls and want cancellation/deadline propagation.
func (c *Context) Context() context.Context { return c.ctx }

// Params returns the case-translated, but otherwise untyped, argument map.
func (c *Context) Params() map[string]any { return c.rawArgs }

// BindParams decodes the argument map into a typed struct using
// mapstructure, so tool bodies don't hand-roll field-by-field assignment.
func (c *Context) BindParams(out any) error {
	return mapstructure.Decode(c.rawArgs, out)
}

// Progress yields a non-terminal Progress frame.
func (c *Context) Progress(current, total int, message string) {
	c.emit(frame.Progress(current, total, message))
}

// Log yields a non-terminal Log frame.
func (c *Context) Log(level frame.Level, message string) {
	c.emit(frame.Log(level, message))
}

// Structured yields the terminal success frame.
func (c *Context) Structured(result map[string]any, summary string) {
	c.emitTerminal(frame.Structured(result, summary))
}

// Error yields the terminal failure frame. code defaults to "internal".
func (c *Context) Error(message string, code string) {
	c.emitTerminal(frame.Error(code, message, nil))
}

// IsCancelled reflects the request's one-shot cancel signal. Handlers poll
// this at their own yield points; nothing forces them to stop.
func (c *Context) IsCancelled() bool {
	return c.cancelled.Load()
}

// Payment is the read-only view of this request's verified payment, or a
// zero-value PaymentView{Present:false} for free tools.
func (c *Context) Payment() PaymentView { return c.payment }

func (c *Context) emit(f frame.Frame) {
	if c.sentTerm.Load() {
		return
	}
	select {
	case c.frames <- f:
	case <-c.abandoned:
	}
}

func (c *Context) emitTerminal(f frame.Frame) {
	if !c.sentTerm.CompareAndSwap(false, true) {
		return
	}
	select {
	case c.frames <- f:
	case <-c.abandoned:
	}
}

// SentTerminal reports whether a terminal frame has already been sent,
// letting the dispatcher distinguish "handler returned cleanly" from
// "handler returned without yielding a terminal frame".
func (c *Context) SentTerminal() bool { return c.sentTerm.Load() }

// Registry holds the process-lifetime tool catalogue, built once at startup.
type Registry struct {
	base *registry.BaseRegistry[*Descriptor]
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[*Descriptor]()}
}

// RegisterAll registers every descriptor, stopping at the first duplicate or
// invalid one. cmd/mcpserver treats a non-nil error here as a fatal,
// deterministic startup failure and exits non-zero rather than panicking.
func (r *Registry) RegisterAll(descriptors ...*Descriptor) error {
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Register validates and adds one descriptor.
func (r *Registry) Register(d *Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool: descriptor has an empty name")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q: handler must not be nil", d.Name)
	}
	if d.Pricing == nil {
		d.Pricing = Free{}
	}
	if fixed, ok := d.Pricing.(Fixed); ok && fixed.PriceUSD < 0 {
		return fmt.Errorf("tool %q: price_usd must be >= 0", d.Name)
	}
	if dyn, ok := d.Pricing.(Dynamic); ok && dyn.MinUSD > dyn.MaxUSD {
		return fmt.Errorf("tool %q: dynamic pricing min must be <= max", d.Name)
	}
	return r.base.Register(d.Name, d)
}

// Lookup finds a registered tool by name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	return r.base.Get(name)
}

// List returns every registered tool, in no particular order; callers that
// need determinism (tools/list response) should sort by Name.
func (r *Registry) List() []*Descriptor {
	return r.base.List()
}

// Count returns the number of registered tools.
func (r *Registry) Count() int { return r.base.Count() }
