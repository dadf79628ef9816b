package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/baldanca/sqs-drainer/budget"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drain the queue once and print the run report",
	Long: `Drain the queue once and print the run report as JSON.

Polling stops when the queue runs dry, --timeout elapses, or the process is
interrupted. Invocations already started always finish before exit.

Example:
  drainer run -c drainer.yaml
  drainer run --queue-url https://sqs.../jobs --worker-id job-worker --timeout 10m`,
	RunE: runDrain,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("queue-url", "", "queue to drain (overrides queue_url)")
	runCmd.Flags().String("worker-id", "", "worker function name or ARN (overrides worker_id)")
	runCmd.Flags().Duration("timeout", 0, "stop polling after this long (0 = no limit)")
	runCmd.Flags().Bool("simulate", false, "use a simulated worker instead of Lambda")
	runCmd.Flags().Bool("strict", false, "exit non-zero if any error was recorded")
}

func runDrain(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	queueURL, _ := cmd.Flags().GetString("queue-url")
	workerID, _ := cmd.Flags().GetString("worker-id")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	simulate, _ := cmd.Flags().GetBool("simulate")
	strict, _ := cmd.Flags().GetBool("strict")

	cfg, log, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newAWSApp(ctx, cfg, log, simulate)
	if err != nil {
		return err
	}

	rep, err := a.drain(ctx, queueURL, workerID, runBudget(ctx, timeout, cfg.StopMargin))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if strict && len(rep.Errors) > 0 {
		return fmt.Errorf("%d errors recorded", len(rep.Errors))
	}
	return nil
}

// runBudget stops polling after timeout (if set) or when ctx's own deadline
// is closer than margin.
func runBudget(ctx context.Context, timeout, margin time.Duration) budget.StopFunc {
	var after budget.StopFunc
	if timeout > 0 {
		after = budget.After(timeout)
	}
	return budget.Any(after, budget.Remaining(ctx, margin))
}
