// Package transport exposes the three HTTP endpoints (`/mcp`, `/health`,
// `/mcp-info`) this server serves, routed with chi. internal/transport
// never interprets a JSON-RPC method; it decodes the envelope, hands it to
// internal/protocol.Router, and writes back whatever Outcome says: a JSON
// body, a 402, or an SSE stream it drives itself.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chainsafe/canton-mcp-server/internal/protocol"
)

// Config configures the Transport Server.
type Config struct {
	Addr       string
	ServerName string
}

// Server owns the HTTP listener and routes every request to Router.
type Server struct {
	router *protocol.Router
	cfg    Config
	http   *http.Server
}

// New builds a Server. Call Start to begin serving.
func New(cfg Config, router *protocol.Router) *Server {
	return &Server{router: router, cfg: cfg}
}

// Start builds the route table and serves until Stop is called or the
// listener fails. Blocking.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(requestLogMiddleware)

	r.Post("/mcp", s.handleMCP)
	r.Get("/health", s.handleHealth)
	r.Get("/mcp-info", s.handleInfo)

	s.http = &http.Server{Addr: s.cfg.Addr, Handler: r}
	slog.Info("transport: listening", "addr", s.cfg.Addr)

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("transport: listen: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, req)
		slog.Debug("transport: request", "method", req.Method, "path", req.URL.Path,
			"status", wrapped.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

// statusWriter captures the status code and passes Flush through so SSE
// streaming keeps working underneath the logging middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, s.router.Tools.Count())
	for _, d := range s.router.Tools.List() {
		names = append(names, d.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         s.router.Info.Name,
		"version":      s.router.Info.Version,
		"tools":        names,
		"paymentRails": railAdvert(s.router),
		"protocol":     "mcp",
		"transport":    "sse",
	})
}

func railAdvert(r *protocol.Router) []string {
	rails := []string{}
	if !r.Payments.Enabled() {
		return rails
	}
	for _, req := range r.Payments.Requirements(0, "") {
		rails = append(rails, req.Scheme)
	}
	return rails
}

// handleMCP is the single POST /mcp entry point: it decodes the JSON-RPC
// envelope, asks Router what to do, and renders the Outcome as either a
// JSON body, an HTTP 402, or an SSE stream.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"jsonrpc": "2.0",
			"error":   map[string]any{"code": protocol.ParseError, "message": "malformed JSON-RPC envelope"},
		})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"jsonrpc": "2.0",
			"error":   map[string]any{"code": protocol.InvalidRequest, "message": "invalid JSON-RPC request"},
		})
		return
	}

	outcome := s.router.Route(r.Context(), &req, r.Header.Get("X-PAYMENT"))

	switch {
	case outcome.NoBody:
		w.WriteHeader(http.StatusNoContent)

	case outcome.PaymentRequired != nil:
		writeJSON(w, http.StatusPaymentRequired, outcome.PaymentRequired)

	case outcome.Stream != nil:
		s.streamToolCall(w, r, outcome.Stream)

	default:
		status := outcome.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		writeJSON(w, status, outcome.JSONBody)
	}
}

func (s *Server) streamToolCall(w http.ResponseWriter, r *http.Request, plan *protocol.StreamPlan) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"jsonrpc": "2.0",
			"error":   map[string]any{"code": protocol.InternalError, "message": "streaming unsupported by this response writer"},
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: w, flusher: flusher}
	slog.Info("transport: tool call streaming", "tool", plan.ToolName())
	s.router.ExecuteStream(r.Context(), plan, sink)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
