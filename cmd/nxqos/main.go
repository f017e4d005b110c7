// Nxqos is a QoS policy compiler and deployer for NX-API capable switches.
//
// It parses declarative policy documents (access lists, class maps, policy
// maps, service-policy attachments), validates them, compiles them into a
// dependency-ordered CLI command sequence, and deploys them transactionally:
// snapshot, apply, verify, and automatic rollback on failure.
//
// Usage:
//
//	nxqos [command] [flags]
//
// See 'nxqos --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/nxqos/internal/logging"
	"github.com/muurk/nxqos/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nxqos",
	Short: "QoS policy compiler and deployer for NX-API switches",
	Long: `Compile declarative QoS policy documents into switch CLI commands and
deploy them transactionally over NX-API.

A deployment snapshots the device state it is about to touch, applies the
compiled commands in dependency order, verifies the device against the
policy, and automatically rolls back to the snapshot when anything fails.

Set NXQOS_LOG_LEVEL=debug for request-level tracing.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nxqos %s\n", version.Full())
	},
}
