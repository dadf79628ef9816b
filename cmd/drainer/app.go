package main

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/baldanca/sqs-drainer/budget"
	"github.com/baldanca/sqs-drainer/config"
	"github.com/baldanca/sqs-drainer/dispatch"
	"github.com/baldanca/sqs-drainer/drainer"
	"github.com/baldanca/sqs-drainer/logger"
	"github.com/baldanca/sqs-drainer/report"
	"github.com/baldanca/sqs-drainer/source"
)

// app is a fully wired drainer plus its run report publisher.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	drainer *drainer.Drainer
	reports *report.Publisher
}

func loadConfig(path string) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

// newAWSApp builds SQS, Lambda and (optionally) S3 clients from the default
// AWS credential chain.
func newAWSApp(ctx context.Context, cfg *config.Config, log logger.Logger, simulate bool) (*app, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	recv := source.NewSQSReceiver(sqs.NewFromConfig(awsCfg), cfg.SQSReceiver())

	var inv dispatch.Invoker
	if simulate {
		inv = dispatch.DefaultSimulatedInvoker
	} else {
		inv = dispatch.NewLambdaInvoker(lambda.NewFromConfig(awsCfg), cfg.Lambda())
	}

	var sink report.Sink = report.NopSink{}
	if cfg.Report.Bucket != "" {
		sink = report.NewS3Sink(s3.NewFromConfig(awsCfg), cfg.Report.Bucket, cfg.Report.Prefix)
	}

	return newApp(cfg, log, recv, inv, sink)
}

func newApp(cfg *config.Config, log logger.Logger, recv source.Receiver, inv dispatch.Invoker, sink report.Sink) (*app, error) {
	d, err := drainer.New(cfg.Drainer(), recv, inv, log, cfg.DispatchOptions()...)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		log:     log,
		drainer: d,
		reports: report.NewPublisher(sink, report.DefaultKey),
	}, nil
}

// drain runs one Consume and publishes its report. A failed publish is
// logged, never returned: the drain itself already happened.
func (a *app) drain(ctx context.Context, queueURL, workerID string, stop budget.StopFunc) (report.Report, error) {
	if queueURL == "" {
		queueURL = a.cfg.QueueURL
	}
	if workerID == "" {
		workerID = a.cfg.WorkerID
	}

	res, err := a.drainer.Consume(ctx, queueURL, workerID, stop)
	if err != nil {
		return report.Report{}, err
	}

	rep := report.FromResult(queueURL, workerID, res, time.Now())
	if err := a.reports.Publish(context.WithoutCancel(ctx), rep); err != nil {
		a.log.Warnf(ctx, "publish run report failed: %v", err)
	}
	return rep, nil
}
