// Package main provides envoyctl, the operator CLI for an Envoy daemon's
// /api/v1 HTTP surface: sending chat turns, and inspecting/mutating
// sessions, tools, integrations, and scheduled tasks.
//
// Grounded on cmd/nexus/main.go's cobra root-command construction.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// addr is the daemon's base URL, shared by every subcommand via a
// persistent flag.
var addr string

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "envoyctl",
		Short:        "Operator CLI for the Envoy agent runtime",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8080", "Envoy daemon base URL")
	root.AddCommand(
		buildChatCmd(),
		buildSessionsCmd(),
		buildToolsCmd(),
		buildIntegrationsCmd(),
		buildTasksCmd(),
	)
	return root
}
