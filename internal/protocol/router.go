// Package protocol also hosts the Router, which owns method routing for
// every JSON-RPC method MCP defines and is the one place that knows about
// every other component (tool registry, resource/prompt registry, request
// manager, payment gate, dispatcher, telemetry). internal/transport knows
// nothing about MCP methods; it only knows how to get bytes in and SSE
// frames out, and calls Router to decide what those bytes mean.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/chainsafe/canton-mcp-server/internal/dispatcher"
	"github.com/chainsafe/canton-mcp-server/internal/payment"
	"github.com/chainsafe/canton-mcp-server/internal/request"
	"github.com/chainsafe/canton-mcp-server/internal/resource"
	"github.com/chainsafe/canton-mcp-server/internal/telemetry"
	"github.com/chainsafe/canton-mcp-server/internal/tool"
)

// MCP method names.
const (
	MethodInitialize      = "initialize"
	MethodToolsList       = "tools/list"
	MethodToolsCall       = "tools/call"
	MethodResourcesList   = "resources/list"
	MethodResourcesRead   = "resources/read"
	MethodPromptsList     = "prompts/list"
	MethodPromptsGet      = "prompts/get"
	MethodPing            = "ping"
	MethodNotifyCancel    = "notifications/cancel"
	protocolVersionAdvert = "2024-11-05"
)

// ServerInfo names this server instance for initialize responses,
// mcp-info, and discovery records.
type ServerInfo struct {
	ID      string
	Name    string
	Version string
}

// Router routes decoded JSON-RPC requests to the right component. Construct
// one per process; it is safe for concurrent use because every component it
// holds already guards its own state.
type Router struct {
	Info      ServerInfo
	Tools     *tool.Registry
	Resources *resource.Registry
	Requests  *request.Manager
	Payments  *payment.Gate
	Telemetry telemetry.Sink
}

// Sink is the write side of an open SSE stream; re-exported so
// internal/transport doesn't need to import internal/dispatcher directly.
type Sink = dispatcher.Sink

// Outcome of routing a single decoded request. Exactly one of the *Body
// fields is populated, matching the HTTP status code.
type Outcome struct {
	// StatusCode is the HTTP status internal/transport must write.
	StatusCode int

	// JSONBody is a single JSON-RPC envelope (initialize, tools/list,
	// ping, resources/*, prompts/*, or errors). It is nil for a
	// notification; see NoBody.
	JSONBody *Response

	// PaymentRequired is set when StatusCode == 402.
	PaymentRequired *payment.RequiredResponse

	// Stream is set only for tools/call once payment (if any) has been
	// verified; internal/transport must open an SSE response and call
	// ExecuteStream with the sink it built.
	Stream *StreamPlan

	// NoBody is set for notifications: nothing should be written at all
	// beyond perhaps a bare 2xx.
	NoBody bool
}

// StreamPlan is everything ExecuteStream needs to run a verified tools/call.
type StreamPlan struct {
	descriptor *tool.Descriptor
	args       map[string]any
	req        *request.Request
	payment    *payment.Info
	rail       payment.Rail
	envelope   string
}

// Route decodes params for req.Method and returns what internal/transport
// should do next. paymentHeader is the raw X-PAYMENT header value, empty
// if absent. Route never blocks on network I/O except the payment
// facilitator's /verify call.
func (r *Router) Route(ctx context.Context, req *Request, paymentHeader string) Outcome {
	if req.IsNotification() {
		r.handleNotification(req)
		return Outcome{NoBody: true}
	}

	switch req.Method {
	case MethodInitialize:
		return r.jsonOK(req.ID, r.handleInitialize())
	case MethodToolsList:
		return r.jsonOK(req.ID, r.handleToolsList())
	case MethodToolsCall:
		return r.routeToolsCall(ctx, req, paymentHeader)
	case MethodResourcesList:
		return r.jsonOK(req.ID, r.handleResourcesList())
	case MethodResourcesRead:
		return r.routeResourcesRead(req)
	case MethodPromptsList:
		return r.jsonOK(req.ID, r.handlePromptsList())
	case MethodPromptsGet:
		return r.routePromptsGet(req)
	case MethodPing:
		return r.jsonOK(req.ID, map[string]any{})
	default:
		return r.jsonErr(req.ID, 200, MethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil)
	}
}

func (r *Router) jsonOK(id any, result any) Outcome {
	return Outcome{StatusCode: 200, JSONBody: newResponse(id, result)}
}

func (r *Router) jsonErr(id any, status, code int, message string, data any) Outcome {
	return Outcome{StatusCode: status, JSONBody: newErrorResponse(id, code, message, data)}
}

// --- initialize ---

func (r *Router) handleInitialize() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersionAdvert,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{"listChanged": false},
			"prompts":   map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    r.Info.Name,
			"version": r.Info.Version,
		},
	}
}

// --- tools/list ---

func (r *Router) handleToolsList() map[string]any {
	descs := r.Tools.List()
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })

	out := make([]map[string]any, 0, len(descs))
	for _, d := range descs {
		out = append(out, map[string]any{
			"name":            d.Name,
			"description":     d.HumanDescription,
			"inputSchema":     SchemaToCamel(d.ParamSchema),
			"outputSchema":    SchemaToCamel(d.ResultSchema),
			"pricing_advert":  pricingAdvert(d.Pricing),
		})
	}
	return map[string]any{"tools": out}
}

func pricingAdvert(p tool.Pricing) map[string]any {
	switch v := p.(type) {
	case tool.Fixed:
		return map[string]any{"type": "fixed", "price_usd": v.PriceUSD}
	case tool.Dynamic:
		return map[string]any{"type": "dynamic", "min_usd": v.MinUSD, "max_usd": v.MaxUSD}
	default:
		return map[string]any{"type": "free"}
	}
}

// --- tools/call ---

type toolsCallWireParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (r *Router) routeToolsCall(ctx context.Context, req *Request, paymentHeader string) Outcome {
	var p toolsCallWireParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return r.jsonErr(req.ID, 200, InvalidParams, fmt.Sprintf("malformed tools/call params: %v", err), nil)
		}
	}

	desc, ok := r.Tools.Lookup(p.Name)
	if !ok {
		return r.jsonErr(req.ID, 200, MethodNotFound, fmt.Sprintf("unknown tool %q", p.Name), map[string]any{"tool": p.Name})
	}

	args, _ := CamelToSnakeDeep(p.Arguments).(map[string]any)
	if args == nil {
		args = map[string]any{}
	}

	if problems := ValidateArgs(desc.ParamSchema, args); problems != nil {
		return r.jsonErr(req.ID, 200, InvalidParams, fmt.Sprintf("invalid arguments for tool %q", p.Name), problems)
	}

	// req.ID is never nil here (IsNotification already routed nil-id
	// requests away), but a client can still send an empty-string id; the
	// Request Manager needs a unique, non-empty key regardless, so one is
	// minted with uuid rather than risking request table collisions.
	reqID := idString(req.ID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	rec := r.Requests.Register(reqID, MethodToolsCall)

	requiredUSD := desc.Pricing.RequiredUSD(args)
	if requiredUSD <= 0 || !r.Payments.Enabled() {
		r.Requests.Transition(reqID, request.StateExecuting)
		return Outcome{StatusCode: 200, Stream: &StreamPlan{descriptor: desc, args: args, req: rec}}
	}

	r.Requests.Transition(reqID, request.StateVerifying)

	if paymentHeader == "" {
		r.Requests.Complete(reqID, request.StateFailed)
		return Outcome{StatusCode: 402, PaymentRequired: &payment.RequiredResponse{
			X402Version: 1,
			Accepts:     r.Payments.Requirements(requiredUSD, desc.HumanDescription),
		}}
	}

	scheme, err := payment.DecodeScheme(paymentHeader)
	if err != nil {
		r.Requests.Complete(reqID, request.StateFailed)
		return r.jsonErr(req.ID, 400, InvalidParams, err.Error(), nil)
	}

	rail, client, err := r.Payments.SelectRail(scheme)
	if err != nil {
		r.Requests.Complete(reqID, request.StateFailed)
		return r.jsonErr(req.ID, 400, InvalidParams, err.Error(), nil)
	}

	verify, err := r.Payments.Verify(ctx, rail, paymentHeader, requiredUSD)
	if err != nil || verify.Verdict != payment.VerdictVerified {
		reason := verify.Reason
		if err != nil {
			reason = err.Error()
		}
		r.Requests.Complete(reqID, request.StateFailed)
		return Outcome{StatusCode: 402, PaymentRequired: &payment.RequiredResponse{
			X402Version: 1,
			Accepts:     r.Payments.Requirements(requiredUSD, desc.HumanDescription),
			Reason:      reason,
		}}
	}

	info := &payment.Info{
		Rail:               rail,
		RequiredUSD:        requiredUSD,
		RawEnvelope:        paymentHeader,
		FacilitatorVerdict: payment.VerdictVerified,
		SettlementResult:   payment.SettlementPending,
		AmountAtomic:       client.AtomicUnitsForUSD(requiredUSD),
		CurrencySymbol:     client.CurrencySymbol(),
	}

	r.Requests.Transition(reqID, request.StateExecuting)
	return Outcome{StatusCode: 200, Stream: &StreamPlan{
		descriptor: desc, args: args, req: rec, payment: info, rail: rail, envelope: paymentHeader,
	}}
}

// ToolName is exposed for internal/transport's access logging; StreamPlan's
// other fields stay unexported since nothing outside Router should inspect
// a tool call's resolved args or payment state.
func (p *StreamPlan) ToolName() string { return p.descriptor.Name }

// ExecuteStream drives a verified tools/call to completion over sink, then
// emits telemetry and settles payment, in that order: telemetry must record
// the execution outcome whether or not settlement goes through. Called by
// internal/transport once it has opened the SSE response for plan.
func (r *Router) ExecuteStream(ctx context.Context, plan *StreamPlan, sink Sink) {
	paymentView := tool.PaymentView{}
	if plan.payment != nil {
		paymentView = tool.PaymentView{
			Present:     true,
			Rail:        string(plan.rail),
			RequiredUSD: plan.payment.RequiredUSD,
			CostPaid:    plan.payment.RequiredUSD,
			Currency:    plan.payment.CurrencySymbol,
		}
	}

	outcome := dispatcher.Run(ctx, sink, plan.descriptor, plan.args, plan.req.CancelSignal(), paymentView)

	willSettle := plan.payment != nil && outcome.Success && !outcome.Cancelled
	switch {
	case outcome.Cancelled:
		r.Requests.Complete(plan.req.ID, request.StateCancelled)
	case !outcome.Success:
		r.Requests.Complete(plan.req.ID, request.StateFailed)
	case willSettle:
		r.Requests.Transition(plan.req.ID, request.StateSettling)
	default:
		r.Requests.Complete(plan.req.ID, request.StateCompleted)
	}

	perf := telemetry.PerfRecord{
		ServerID:  r.Info.ID,
		Tool:      plan.descriptor.Name,
		ExecMS:    outcome.ExecMS,
		Success:   outcome.Success,
		Cancelled: outcome.Cancelled,
		Context:   map[string]any{"args": plan.args},
	}
	if plan.payment != nil {
		cost := plan.payment.RequiredUSD
		perf.CostPaid = &cost
		perf.Currency = plan.payment.CurrencySymbol
	}
	r.Telemetry.EmitPerf(perf)

	if !willSettle {
		return
	}

	settle, err := r.Payments.Settle(ctx, plan.rail, plan.envelope)
	if err != nil || settle.Result != payment.SettlementSettled {
		reason := settle.Reason
		if err != nil {
			reason = err.Error()
		}
		slog.Warn("payment: settlement failed", "tool", plan.descriptor.Name, "rail", plan.rail, "reason", reason)
		r.Telemetry.EmitPerf(telemetry.PerfRecord{
			ServerID: r.Info.ID,
			Tool:     plan.descriptor.Name,
			Success:  true,
			Event:    "settlement_failed",
		})
	}
	r.Requests.Complete(plan.req.ID, request.StateCompleted)
}

// --- resources/prompts ---

func (r *Router) handleResourcesList() map[string]any {
	list := r.Resources.ListResources()
	out := make([]map[string]any, 0, len(list))
	for _, res := range list {
		out = append(out, map[string]any{"uri": res.URI, "mimeType": res.MimeType, "description": res.Description})
	}
	return map[string]any{"resources": out}
}

type resourcesReadParams struct {
	URI string `json:"uri"`
}

func (r *Router) routeResourcesRead(req *Request) Outcome {
	var p resourcesReadParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return r.jsonErr(req.ID, 200, InvalidParams, "malformed resources/read params", nil)
	}
	res, ok := r.Resources.Resource(p.URI)
	if !ok {
		return r.jsonErr(req.ID, 200, MethodNotFound, fmt.Sprintf("unknown resource %q", p.URI), map[string]any{"uri": p.URI})
	}
	return r.jsonOK(req.ID, map[string]any{
		"uri":      res.URI,
		"mimeType": res.MimeType,
		"text":     string(res.Content),
	})
}

func (r *Router) handlePromptsList() map[string]any {
	list := r.Resources.ListPrompts()
	out := make([]map[string]any, 0, len(list))
	for _, p := range list {
		out = append(out, map[string]any{"name": p.Name, "description": p.Description})
	}
	return map[string]any{"prompts": out}
}

type promptsGetParams struct {
	Name string `json:"name"`
}

func (r *Router) routePromptsGet(req *Request) Outcome {
	var p promptsGetParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return r.jsonErr(req.ID, 200, InvalidParams, "malformed prompts/get params", nil)
	}
	prompt, ok := r.Resources.Prompt(p.Name)
	if !ok {
		return r.jsonErr(req.ID, 200, MethodNotFound, fmt.Sprintf("unknown prompt %q", p.Name), map[string]any{"name": p.Name})
	}
	return r.jsonOK(req.ID, map[string]any{
		"description": prompt.Description,
		"messages": []map[string]any{
			{"role": "user", "content": map[string]any{"type": "text", "text": prompt.Content}},
		},
	})
}

// --- notifications/cancel ---

type cancelParams struct {
	RequestID any `json:"requestId"`
}

func (r *Router) handleNotification(req *Request) {
	if req.Method != MethodNotifyCancel {
		return
	}
	var p cancelParams
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &p)
	}
	// Unknown ids are silently dropped; MarkCancelled is already a
	// no-op for them.
	r.Requests.MarkCancelled(idString(p.RequestID))
}

func idString(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
