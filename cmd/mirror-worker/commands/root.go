// Package commands implements the mirror-worker CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile  string
	workerID string
)

var rootCmd = &cobra.Command{
	Use:   "mirror-worker",
	Short: "Poll the mirror's queue and copy or delete objects between buckets",
	Long: `mirror-worker long-polls the durable queue for S3 sync events and drives the
copy or delete engine for each one, acking the queue message only once every
record in it has succeeded.

It self-exits after sustained idleness (no messages across several polls) or
when its context is canceled by SIGTERM (e.g. a Spot interruption or an ECS
task stop), draining any in-flight message within its configured deadline
before exiting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWorker,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: ./mirror.yaml)")
	rootCmd.Flags().StringVar(&workerID, "worker-id", "", "worker identifier (default: hostname-pid)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
