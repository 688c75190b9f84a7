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

// Command mcpserver runs the Canton MCP tool server: one binary whose
// long-running "serve" subcommand exposes registered tools over MCP's
// JSON-RPC/SSE transport with an optional HTTP 402 payment gate in front of
// priced tools.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// CLI is the top-level command structure.
type CLI struct {
	Serve   ServeCmd   `cmd:"" default:"1" help:"Start the MCP tool server."`
	Version VersionCmd `cmd:"" help:"Print the server version."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or text)." default:"simple"`
}

// printBanner prints a short colored banner when stdout is a terminal.
func printBanner() {
	if fileInfo, err := os.Stdout.Stat(); err != nil || (fileInfo.Mode()&os.ModeCharDevice) == 0 {
		return
	}

	// Canton blue: #2D6CDF = RGB(45, 108, 223)
	blueColor := "\033[38;2;45;108;223m"
	resetColor := "\033[0m"
	fmt.Printf("%smcpserver - Canton MCP tool server%s\n", blueColor, resetColor)
}

// shouldSkipBanner reports whether the invoked command is informational
// rather than a server start.
func shouldSkipBanner(args []string) bool {
	for _, arg := range args[1:] {
		if arg == "version" {
			return true
		}
	}
	return false
}

func main() {
	// A missing .env is not an error; env vars and defaults still apply.
	_ = godotenv.Load()

	if !shouldSkipBanner(os.Args) {
		printBanner()
	}

	cli := CLI{}
	parseCtx := kong.Parse(&cli,
		kong.Name("mcpserver"),
		kong.Description("Canton MCP tool server"),
		kong.UsageOnError(),
	)

	if err := parseCtx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
