package protocol

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/canton-mcp-server/internal/frame"
	"github.com/chainsafe/canton-mcp-server/internal/payment"
	"github.com/chainsafe/canton-mcp-server/internal/request"
	"github.com/chainsafe/canton-mcp-server/internal/resource"
	"github.com/chainsafe/canton-mcp-server/internal/telemetry"
	"github.com/chainsafe/canton-mcp-server/internal/tool"
)

type recordingSink struct {
	frames []frame.Frame
}

func (s *recordingSink) Send(f frame.Frame) error {
	s.frames = append(s.frames, f)
	return nil
}

func echoTool() *tool.Descriptor {
	return &tool.Descriptor{
		Name:             "echo",
		HumanDescription: "echoes its input back",
		ParamSchema:      map[string]any{"type": "object", "properties": map[string]any{"say_hello": map[string]any{"type": "string"}}},
		ResultSchema:     map[string]any{"type": "object"},
		Pricing:          tool.Free{},
		Handler: func(ctx *tool.Context) error {
			ctx.Structured(map[string]any{"said": ctx.Params()["say_hello"]}, "echoed")
			return nil
		},
	}
}

func pricedTool() *tool.Descriptor {
	return &tool.Descriptor{
		Name:             "validate",
		HumanDescription: "validates a payload",
		ParamSchema:      map[string]any{"type": "object"},
		ResultSchema:     map[string]any{"type": "object"},
		Pricing:          tool.Fixed{PriceUSD: 0.10},
		Handler: func(ctx *tool.Context) error {
			ctx.Structured(map[string]any{"ok": true}, "validated")
			return nil
		},
	}
}

func newTestRouter(t *testing.T, payments *payment.Gate) *Router {
	t.Helper()
	tools := tool.NewRegistry()
	require.NoError(t, tools.RegisterAll(echoTool(), pricedTool()))

	resources := resource.New()
	resources.Set(
		map[string]resource.Resource{"file://readme": {URI: "file://readme", MimeType: "text/plain", Content: []byte("hi")}},
		map[string]resource.Prompt{"greeting": {Name: "greeting", Description: "says hi", Content: "hello"}},
	)

	requests := request.NewManager(request.DefaultRetention)
	t.Cleanup(requests.Close)

	if payments == nil {
		payments = payment.NewGate(nil, nil)
	}

	return &Router{
		Info:      ServerInfo{ID: "srv-1", Name: "test-server", Version: "0.0.0-test"},
		Tools:     tools,
		Resources: resources,
		Requests:  requests,
		Payments:  payments,
		Telemetry: telemetry.Noop{},
	}
}

func callToolRaw(r *Router, name string, args map[string]any, paymentHeader string) (*Request, Outcome) {
	params, _ := json.Marshal(toolsCallWireParams{Name: name, Arguments: args})
	req := &Request{JSONRPC: "2.0", ID: "req-1", Method: MethodToolsCall, Params: params}
	return req, r.Route(context.Background(), req, paymentHeader)
}

func TestRouter_FreeToolHappyPath(t *testing.T) {
	r := newTestRouter(t, nil)
	_, outcome := callToolRaw(r, "echo", map[string]any{"sayHello": "world"}, "")
	require.NotNil(t, outcome.Stream)

	sink := &recordingSink{}
	r.ExecuteStream(context.Background(), outcome.Stream, sink)

	require.Len(t, sink.frames, 1)
	assert.Equal(t, frame.KindStructured, sink.frames[0].Type)
	assert.Equal(t, "world", sink.frames[0].Result["said"])
}

func TestRouter_PricedToolMissingPaymentReturns402(t *testing.T) {
	r := newTestRouter(t, payment.NewGate(payment.NewEVMClient("http://evm.invalid", "base", "0xusdc", "0xpayee"), nil))
	_, outcome := callToolRaw(r, "validate", map[string]any{}, "")

	assert.Equal(t, http.StatusPaymentRequired, outcome.StatusCode)
	require.NotNil(t, outcome.PaymentRequired)
	assert.Equal(t, 1, outcome.PaymentRequired.X402Version)
	require.Len(t, outcome.PaymentRequired.Accepts, 1)
	assert.Equal(t, "exact", outcome.PaymentRequired.Accepts[0].Scheme)
}

func TestRouter_PricedToolVerifiedAndSettled(t *testing.T) {
	var settleCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/verify":
			json.NewEncoder(w).Encode(map[string]string{"verdict": "verified"})
		case "/settle":
			settleCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]string{"result": "settled", "txRef": "0xabc"})
		}
	}))
	defer srv.Close()

	evm := payment.NewEVMClient(srv.URL, "base", "0xusdc", "0xpayee")
	r := newTestRouter(t, payment.NewGate(evm, nil))

	envelope := `{"scheme":"exact","network":"base"}`
	_, outcome := callToolRaw(r, "validate", map[string]any{}, envelope)
	require.Equal(t, http.StatusOK, outcome.StatusCode)
	require.NotNil(t, outcome.Stream)

	sink := &recordingSink{}
	r.ExecuteStream(context.Background(), outcome.Stream, sink)
	require.Len(t, sink.frames, 1)
	assert.Equal(t, frame.KindStructured, sink.frames[0].Type)
	assert.Equal(t, int64(1), settleCalls.Load())
}

func TestRouter_PricedToolVerificationRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"verdict": "rejected", "reason": "insufficient funds"})
	}))
	defer srv.Close()

	evm := payment.NewEVMClient(srv.URL, "base", "0xusdc", "0xpayee")
	r := newTestRouter(t, payment.NewGate(evm, nil))

	envelope := `{"scheme":"exact","network":"base"}`
	_, outcome := callToolRaw(r, "validate", map[string]any{}, envelope)

	assert.Equal(t, http.StatusPaymentRequired, outcome.StatusCode)
	require.NotNil(t, outcome.PaymentRequired)
	assert.Equal(t, "insufficient funds", outcome.PaymentRequired.Reason)
}

func TestRouter_CancellationSkipsSettlement(t *testing.T) {
	var settleCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/verify":
			json.NewEncoder(w).Encode(map[string]string{"verdict": "verified"})
		case "/settle":
			settleCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]string{"result": "settled"})
		}
	}))
	defer srv.Close()

	tools := tool.NewRegistry()
	started := make(chan struct{})
	require.NoError(t, tools.Register(&tool.Descriptor{
		Name:    "slow",
		Pricing: tool.Fixed{PriceUSD: 0.10},
		Handler: func(ctx *tool.Context) error {
			close(started)
			time.Sleep(2 * time.Second)
			ctx.Structured(map[string]any{"done": true}, "")
			return nil
		},
	}))

	requests := request.NewManager(request.DefaultRetention)
	t.Cleanup(requests.Close)

	r := &Router{
		Info:      ServerInfo{ID: "srv-1", Name: "test-server", Version: "0.0.0-test"},
		Tools:     tools,
		Resources: resource.New(),
		Requests:  requests,
		Payments:  payment.NewGate(payment.NewEVMClient(srv.URL, "base", "0xusdc", "0xpayee"), nil),
		Telemetry: telemetry.Noop{},
	}

	params, _ := json.Marshal(toolsCallWireParams{Name: "slow", Arguments: map[string]any{}})
	req := &Request{JSONRPC: "2.0", ID: "req-slow", Method: MethodToolsCall, Params: params}
	outcome := r.Route(context.Background(), req, `{"scheme":"exact"}`)
	require.NotNil(t, outcome.Stream)

	go func() {
		<-started
		requests.MarkCancelled("req-slow")
	}()

	sink := &recordingSink{}
	r.ExecuteStream(context.Background(), outcome.Stream, sink)

	require.NotEmpty(t, sink.frames)
	last := sink.frames[len(sink.frames)-1]
	assert.Equal(t, frame.KindError, last.Type)
	assert.Equal(t, "cancelled", last.Code)
	assert.Equal(t, int64(0), settleCalls.Load())
}

func TestRouter_ToolsListCaseTranslation(t *testing.T) {
	r := newTestRouter(t, nil)
	req := &Request{JSONRPC: "2.0", ID: "req-1", Method: MethodToolsList}
	outcome := r.Route(context.Background(), req, "")

	require.Equal(t, http.StatusOK, outcome.StatusCode)
	result, ok := outcome.JSONBody.Result.(map[string]any)
	require.True(t, ok)
	tools, ok := result["tools"].([]map[string]any)
	require.True(t, ok)
	require.NotEmpty(t, tools)

	var echo map[string]any
	for _, tl := range tools {
		if tl["name"] == "echo" {
			echo = tl
		}
	}
	require.NotNil(t, echo)
	schema := echo["inputSchema"].(map[string]any)
	props := schema["properties"].(map[string]any)
	_, hasCamel := props["sayHello"]
	assert.True(t, hasCamel, "expected camelCase property name in inputSchema")
}

func TestRouter_NotificationCancelUnknownIDIsNoop(t *testing.T) {
	r := newTestRouter(t, nil)
	params, _ := json.Marshal(map[string]any{"requestId": "does-not-exist"})
	req := &Request{JSONRPC: "2.0", Method: MethodNotifyCancel, Params: params}

	outcome := r.Route(context.Background(), req, "")
	assert.True(t, outcome.NoBody)
}

func TestRouter_InvalidArgumentTypeReturnsInvalidParams(t *testing.T) {
	r := newTestRouter(t, nil)
	_, outcome := callToolRaw(r, "echo", map[string]any{"sayHello": 5.0}, "")

	require.NotNil(t, outcome.JSONBody)
	require.NotNil(t, outcome.JSONBody.Error)
	assert.Equal(t, InvalidParams, outcome.JSONBody.Error.Code)
}

func TestRouter_UnknownToolReturnsMethodNotFound(t *testing.T) {
	r := newTestRouter(t, nil)
	_, outcome := callToolRaw(r, "does-not-exist", map[string]any{}, "")

	require.NotNil(t, outcome.JSONBody)
	require.NotNil(t, outcome.JSONBody.Error)
	assert.Equal(t, MethodNotFound, outcome.JSONBody.Error.Code)
}
