package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chainsafe/canton-mcp-server/internal/config"
	"github.com/chainsafe/canton-mcp-server/internal/obslog"
	"github.com/chainsafe/canton-mcp-server/internal/payment"
	"github.com/chainsafe/canton-mcp-server/internal/protocol"
	"github.com/chainsafe/canton-mcp-server/internal/request"
	"github.com/chainsafe/canton-mcp-server/internal/resource"
	"github.com/chainsafe/canton-mcp-server/internal/telemetry"
	"github.com/chainsafe/canton-mcp-server/internal/tool"
	"github.com/chainsafe/canton-mcp-server/internal/toolset"
	"github.com/chainsafe/canton-mcp-server/internal/transport"
)

// ServeCmd starts the MCP tool server: load config, wire every component,
// serve until a shutdown signal arrives.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	closeLog, err := initLogging(cli)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return fmt.Errorf("mcpserver: %w", err)
	}

	tools := tool.NewRegistry()
	if err := tools.RegisterAll(toolset.Descriptors()...); err != nil {
		return fmt.Errorf("mcpserver: %w", err)
	}

	resources, err := buildResources(cfg)
	if err != nil {
		return fmt.Errorf("mcpserver: resources: %w", err)
	}
	defer resources.Close()

	requests := request.NewManager(request.DefaultRetention)
	defer requests.Close()

	gate := buildPaymentGate(cfg)

	telemetrySink, closeTelemetry, err := buildTelemetry(cfg)
	if err != nil {
		return fmt.Errorf("mcpserver: %w", err)
	}
	defer closeTelemetry()

	serverID := cfg.DCAPServerID
	if serverID == "" {
		serverID = uuid.NewString()
	}

	router := &protocol.Router{
		Info:      protocol.ServerInfo{ID: serverID, Name: cfg.DCAPServerName, Version: buildVersion()},
		Tools:     tools,
		Resources: resources,
		Requests:  requests,
		Payments:  gate,
		Telemetry: telemetrySink,
	}

	server := transport.New(transport.Config{
		Addr:       fmt.Sprintf(":%d", cfg.ListenPort),
		ServerName: cfg.DCAPServerName,
	}, router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("mcpserver: shutting down")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Stop(shutdownCtx)
	})

	if cfg.DCAPEnabled {
		g.Go(func() error {
			runDiscoveryLoop(gctx, cfg, telemetrySink, router)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("mcpserver: %w", err)
	}
	return nil
}

func initLogging(cli *CLI) (func(), error) {
	level, err := obslog.ParseLevel(cli.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: %w", err)
	}

	output := os.Stderr
	cleanup := func() {}
	if cli.LogFile != "" {
		file, fileCleanup, err := obslog.OpenLogFile(cli.LogFile)
		if err != nil {
			return nil, fmt.Errorf("mcpserver: open log file: %w", err)
		}
		output = file
		cleanup = fileCleanup
	}

	obslog.Init(level, output, cli.LogFormat)
	return cleanup, nil
}

func buildPaymentGate(cfg *config.Config) *payment.Gate {
	var evm payment.FacilitatorClient
	if cfg.X402Enabled {
		evm = payment.NewEVMClient(cfg.X402FacilitatorURL, cfg.X402Network, cfg.X402Token, cfg.X402WalletAddress)
	}

	var canton payment.FacilitatorClient
	if cfg.CantonEnabled {
		canton = payment.NewCantonClient(cfg.CantonFacilitatorURL, cfg.CantonNetwork, cfg.CantonPayeeParty)
	}

	return payment.NewGate(evm, canton)
}

func buildTelemetry(cfg *config.Config) (telemetry.Sink, func(), error) {
	if !cfg.DCAPEnabled {
		return telemetry.Noop{}, func() {}, nil
	}

	hostPort := fmt.Sprintf("%s:%d", cfg.DCAPMulticastIP, cfg.DCAPPort)
	emitter, err := telemetry.New(hostPort, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: %w", err)
	}
	return emitter, func() { _ = emitter.Close() }, nil
}

// buildResources loads resource content from MCP_RESOURCES_DIR (with
// hot-reload on change) when set, and falls back to a small built-in
// catalogue otherwise.
func buildResources(cfg *config.Config) (*resource.Registry, error) {
	if cfg.ResourcesDir != "" {
		return resource.LoadFromDir(cfg.ResourcesDir)
	}
	return seedResources(), nil
}

func seedResources() *resource.Registry {
	reg := resource.New()
	reg.Set(
		map[string]resource.Resource{
			"file://about": {
				URI:         "file://about",
				MimeType:    "text/plain",
				Description: "About this server",
				Content:     []byte("Canton MCP tool server: echo and validate, with an optional HTTP 402 payment gate."),
			},
		},
		map[string]resource.Prompt{
			"greeting": {
				Name:        "greeting",
				Description: "A friendly opener for new sessions",
				Content:     "Hello! I can echo text back to you, or validate that a payload is well-formed JSON.",
			},
		},
	)
	return reg
}

// runDiscoveryLoop emits a semantic_discover record per registered tool at
// startup and on every DCAPDiscoverInterval tick, until ctx is cancelled.
func runDiscoveryLoop(ctx context.Context, cfg *config.Config, sink telemetry.Sink, router *protocol.Router) {
	interval := time.Duration(cfg.DCAPDiscoverInterval) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	emit := func() {
		details := railDetails(router)
		for _, d := range router.Tools.List() {
			sink.EmitDiscovery(telemetry.DiscoveryRecord{
				Version:     "2",
				ServerID:    router.Info.ID,
				ServerName:  router.Info.Name,
				Tool:        d.Name,
				Description: d.HumanDescription,
				Connector: telemetry.Connector{
					Transport: "mcp-sse",
					Endpoint:  fmt.Sprintf("http://localhost:%d/mcp", cfg.ListenPort),
					AuthType:  authTypeFor(cfg),
					Details:   details,
				},
			})
		}
	}

	emit()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			emit()
		}
	}
}

func authTypeFor(cfg *config.Config) string {
	if cfg.X402Enabled || cfg.CantonEnabled {
		return "x402"
	}
	return "none"
}

// railDetails renders the enabled payment rails into the discovery record's
// connector "details" array (beside "auth_type"; the record has no nested
// auth object), in the Gate's fixed EVM-then-Canton order, embedded per
// advertised tool.
func railDetails(router *protocol.Router) []telemetry.ConnectorAuthDetail {
	if !router.Payments.Enabled() {
		return nil
	}
	reqs := router.Payments.Requirements(0, "")
	out := make([]telemetry.ConnectorAuthDetail, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, telemetry.ConnectorAuthDetail{
			Rail:    r.Scheme,
			Network: r.Network,
			Asset:   r.Asset,
			PayTo:   r.PayTo,
		})
	}
	return out
}
