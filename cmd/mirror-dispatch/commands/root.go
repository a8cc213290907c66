// Package commands implements the mirror-dispatch CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile     string
	pushGateway string
)

var rootCmd = &cobra.Command{
	Use:   "mirror-dispatch",
	Short: "Run one mirror scheduling tick",
	Long: `mirror-dispatch reads the durable queue's depth and the compute launcher's
worker census, computes the desired worker count from the configured
target-backlog-per-task ratio, and launches the shortfall (bounded by the
burst start limit).

It is stateless across invocations: run it on a fixed period from an
external scheduler (cron, EventBridge) rather than as a long-lived process.
A shortfall left by a failed launch attempt is simply compensated by the
next tick.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDispatch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: ./mirror.yaml)")
	rootCmd.Flags().StringVar(&pushGateway, "pushgateway", "", "Prometheus Pushgateway URL for this tick's metrics (optional)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
