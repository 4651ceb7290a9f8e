// Package commands implements the omadsctl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var (
	// client is the admin/control plane client, initialized in PersistentPreRunE.
	client *adminClient

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the daemon's admin-plane address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for omadsctl.
var rootCmd = &cobra.Command{
	Use:   "omadsctl",
	Short: "CLI client for the omads sync daemon",
	Long:  "omadsctl communicates with the omadsd daemon's admin plane to inspect sessions and the change log, and to trigger resyncs.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		client = newAdminClient(http.DefaultClient, "http://"+serverAddr)
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:50051",
		"omadsd admin-plane address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(changelogCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
