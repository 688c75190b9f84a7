package main

import (
	"fmt"
	"runtime/debug"
)

// VersionCmd prints the build version and exits.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	fmt.Printf("mcpserver %s\n", buildVersion())
	return nil
}

// buildVersion resolves the module version stamped by the Go toolchain,
// falling back to "dev" for non-module builds (go run, test binaries).
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}
