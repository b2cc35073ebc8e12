// Package main is the entry point for the addonctl CLI.
//
// addonctl installs, verifies, and removes cluster add-ons together with the
// cloud resources they need. Every operation is idempotent: resources that
// already match their desired state are skipped, drifted resources are
// converged, and reruns after partial failures finish the remaining work.
//
// Commands: init, install, verify, remove.
//
// For detailed usage information, run:
//
//	addonctl --help
package main

import (
	"fmt"
	"os"

	"github.com/addonctl/addonctl/cmd/addonctl/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
