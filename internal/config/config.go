// Package config loads the server's environment-variable configuration.
// There is no YAML/JSON config file: the only configuration surface is
// environment variables, optionally preceded by a .env file loaded with
// godotenv (cmd/mcpserver/main.go).
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the fully resolved, validated server configuration.
type Config struct {
	ListenPort   int
	ResourcesDir string

	DCAPEnabled          bool
	DCAPMulticastIP      string
	DCAPPort             int
	DCAPServerID         string
	DCAPServerName       string
	DCAPDiscoverInterval int

	X402Enabled        bool
	X402FacilitatorURL string
	X402WalletAddress  string
	X402Network        string
	X402Token          string

	CantonEnabled        bool
	CantonFacilitatorURL string
	CantonPayeeParty     string
	CantonNetwork        string

	LogLevel string
}

// Load reads every recognized environment variable and validates the
// result. A malformed or missing required value is a startup failure, never
// a panic once serve has started accepting connections.
func Load(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := &Config{
		// MCP_SERVER_URL carries a bare port number despite its name;
		// recognized as-is for compatibility with existing deployments.
		ListenPort:   envInt(getenv, "MCP_SERVER_URL", 7284),
		ResourcesDir: getenv("MCP_RESOURCES_DIR"),

		DCAPEnabled:          envBool(getenv, "DCAP_ENABLED", false),
		DCAPMulticastIP:      getenv("DCAP_MULTICAST_IP"),
		DCAPPort:             envInt(getenv, "DCAP_PORT", 9999),
		DCAPServerID:         envOr(getenv, "DCAP_SERVER_ID", "canton-mcp-server"),
		DCAPServerName:       envOr(getenv, "DCAP_SERVER_NAME", "Canton MCP Server"),
		DCAPDiscoverInterval: envInt(getenv, "DCAP_DISCOVER_INTERVAL_SEC", 60),

		X402Enabled:        envBool(getenv, "X402_ENABLED", false),
		X402FacilitatorURL: getenv("X402_FACILITATOR_URL"),
		X402WalletAddress:  getenv("X402_WALLET_ADDRESS"),
		X402Network:        envOr(getenv, "X402_NETWORK", "base-sepolia"),
		X402Token:          envOr(getenv, "X402_TOKEN", "USDC"),

		CantonEnabled:        envBool(getenv, "CANTON_ENABLED", false),
		CantonFacilitatorURL: getenv("CANTON_FACILITATOR_URL"),
		CantonPayeeParty:     getenv("CANTON_PAYEE_PARTY"),
		CantonNetwork:        envOr(getenv, "CANTON_NETWORK", "canton-mainnet"),

		LogLevel: envOr(getenv, "LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("config: invalid MCP_SERVER_URL port %d", c.ListenPort)
	}
	if c.X402Enabled {
		if c.X402WalletAddress == "" {
			return fmt.Errorf("config: X402_ENABLED requires X402_WALLET_ADDRESS")
		}
		if c.X402FacilitatorURL == "" {
			return fmt.Errorf("config: X402_ENABLED requires X402_FACILITATOR_URL")
		}
	}
	if c.CantonEnabled {
		if c.CantonFacilitatorURL == "" {
			return fmt.Errorf("config: CANTON_ENABLED requires CANTON_FACILITATOR_URL")
		}
		if c.CantonPayeeParty == "" {
			return fmt.Errorf("config: CANTON_ENABLED requires CANTON_PAYEE_PARTY")
		}
	}
	return nil
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(getenv func(string) string, key string, fallback int) int {
	v := getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(getenv func(string) string, key string, fallback bool) bool {
	v := getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
