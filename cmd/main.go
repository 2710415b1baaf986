package main

import (
	"os"

	"github.com/spf13/cobra"
)

// set at build time with -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "streamvault",
	Short: "Real-time key-value vault over WebSocket",
	Long: `StreamVault keeps scalar values in memory, snapshots them to disk and
lets WebSocket clients read, write, delete and subscribe to keys.

Configuration comes from the embedded application.yml, expanded with
VAULT_* environment variables, and an optional application-<profile>.yml
in the directory given by --config-dir.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding application-<profile>.yml overrides")
	rootCmd.AddCommand(serveCmd, versionCmd, configCmd, adminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
