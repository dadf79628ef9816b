package main

import (
	"context"
	"fmt"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/baldanca/sqs-drainer/budget"
	"github.com/baldanca/sqs-drainer/report"
)

// invokeEvent lets a scheduler override the configured queue and worker.
type invokeEvent struct {
	QueueURL string `json:"queue_url"`
	WorkerID string `json:"worker_id"`
}

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve drain requests as an AWS Lambda function",
	Long: `Start the AWS Lambda runtime loop. Each invocation drains the queue once and
returns the run report.

Polling stops once less than stop_margin (default 15s) of the invocation's
time budget is left, so in-flight worker calls can finish before the
function is killed.`,
	RunE: runLambda,
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}

func runLambda(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	cfg, log, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newAWSApp(cmd.Context(), cfg, log, false)
	if err != nil {
		return err
	}

	awslambda.Start(a.handle)
	return nil
}

// handle is the Lambda handler. The invocation deadline drives the stop
// predicate; errors recorded during the run are returned in the report, not
// as a handler error.
func (a *app) handle(ctx context.Context, ev invokeEvent) (report.Report, error) {
	rep, err := a.drain(ctx, ev.QueueURL, ev.WorkerID, budget.Remaining(ctx, a.cfg.StopMargin))
	if err != nil {
		return report.Report{}, fmt.Errorf("drain: %w", err)
	}
	if len(rep.Errors) > 0 {
		a.log.Errorf(ctx, "some errors were encountered: %d", len(rep.Errors))
	}
	return rep, nil
}
