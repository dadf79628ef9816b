// Package main is the entry point for the drainer CLI.
//
// Usage:
//
//	drainer run -c drainer.yaml --queue-url URL --worker-id FN   # drain once
//	drainer run --simulate --queue-url URL --worker-id FN         # fake worker
//	drainer lambda -c drainer.yaml                                # Lambda runtime
//	drainer version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "drainer",
	Short: "Drain an SQS queue into a worker function",
	Long: `drainer polls an SQS queue until it runs dry and invokes a worker once per
message, keeping a bounded number of invocations in flight.

Configuration comes from an optional YAML file (-c) and DRAINER_* environment
variables, e.g. DRAINER_QUEUE_URL, DRAINER_WORKER_ID,
DRAINER_MAX_CONCURRENT_INVOCATIONS.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "drainer %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.AddCommand(versionCmd)
}
