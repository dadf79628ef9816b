package drainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/baldanca/sqs-drainer/budget"
	"github.com/baldanca/sqs-drainer/dispatch"
	"github.com/baldanca/sqs-drainer/logger"
	"github.com/baldanca/sqs-drainer/merge"
	"github.com/baldanca/sqs-drainer/poller"
	"github.com/baldanca/sqs-drainer/source"
)

type Config struct {
	// MaxEmptyPolls is the number of consecutive empty polls tolerated; the
	// run ends on the one after that.
	MaxEmptyPolls int
	// MaxConcurrentInvocations is a hard ceiling on unresolved invocations.
	MaxConcurrentInvocations int
}

var DefaultConfig = Config{
	MaxEmptyPolls:            poller.DefaultMaxEmptyPolls,
	MaxConcurrentInvocations: merge.DefaultLimit,
}

func (c Config) Validate() error {
	if c.MaxEmptyPolls < 0 {
		return errors.New("MaxEmptyPolls must be >= 0")
	}
	if c.MaxConcurrentInvocations < 1 {
		return errors.New("MaxConcurrentInvocations must be >= 1")
	}
	return nil
}

// Result is what a run hands back. Errors holds every poll and invocation
// error in arrival order; an empty slice means a clean run.
type Result struct {
	RunID  string
	Errors []error

	Polls           int
	Received        int
	Succeeded       int
	Failed          int
	PollErrors      int
	PeakConcurrency int
	StopReason      poller.Reason
	Duration        time.Duration
}

func (r Result) OK() bool { return len(r.Errors) == 0 }

// Drainer drains a queue into a worker. A Drainer holds no per-run state and
// may run several Consume calls at once.
type Drainer struct {
	cfg  Config
	recv source.Receiver
	inv  dispatch.Invoker
	log  logger.Logger

	dispatchOpts []dispatch.Option
}

func New(
	cfg Config,
	recv source.Receiver,
	inv dispatch.Invoker,
	log logger.Logger,
	opts ...dispatch.Option,
) (*Drainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if recv == nil {
		return nil, fmt.Errorf("receiver is nil")
	}
	if inv == nil {
		return nil, fmt.Errorf("invoker is nil")
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Drainer{
		cfg:          cfg,
		recv:         recv,
		inv:          inv,
		log:          log,
		dispatchOpts: append([]dispatch.Option{dispatch.WithLogger(log)}, opts...),
	}, nil
}

func NewDefault(recv source.Receiver, inv dispatch.Invoker, log logger.Logger, opts ...dispatch.Option) (*Drainer, error) {
	return New(DefaultConfig, recv, inv, log, opts...)
}

// Consume polls queueURL and invokes workerID once per message until the
// queue runs dry, stop returns true, a poll fails or ctx is canceled.
//
// Runtime failures never surface as the returned error; they are recorded in
// Result.Errors. The error is reserved for misuse (empty queue URL or worker).
// Invocations already started when polling stops always run to completion,
// even if ctx is canceled.
func (d *Drainer) Consume(ctx context.Context, queueURL, workerID string, stop budget.StopFunc) (Result, error) {
	if queueURL == "" {
		return Result{}, fmt.Errorf("queue url is required")
	}
	if workerID == "" {
		return Result{}, fmt.Errorf("worker id is required")
	}

	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID, queueURL, workerID)
	start := time.Now()

	p := poller.New(d.recv, queueURL, d.cfg.MaxEmptyPolls, stop, d.log)
	disp := dispatch.NewDispatcher(d.inv, workerID, d.dispatchOpts...)
	m := merge.New[dispatch.Outcome](d.cfg.MaxConcurrentInvocations)
	agg := NewAggregator(d.log)

	d.log.Infof(ctx, "consuming messages: max_concurrent=%d max_empty_polls=%d",
		d.cfg.MaxConcurrentInvocations, d.cfg.MaxEmptyPolls)

	// Producer: sequential polls feed msgs; stopped is written before msgs is
	// closed, so it is safe to read once the range below ends.
	msgs := make(chan source.Message)
	var stopped poller.Stopped
	go func() {
		stopped = p.Run(ctx, msgs)
		close(msgs)
	}()

	ops := make(chan merge.Op[dispatch.Outcome])
	go func() {
		defer close(ops)
		for msg := range msgs {
			ops <- merge.Op[dispatch.Outcome](disp.Dispatch(msg))
		}
		if stopped.Err != nil {
			ops <- merge.Op[dispatch.Outcome](dispatch.Failed("", stopped.Err))
		}
	}()

	agg.Drain(ctx, m.Run(context.WithoutCancel(ctx), ops))

	res := Result{
		RunID:           runID,
		Errors:          agg.Errors(),
		Polls:           p.Polls(),
		Received:        p.Received(),
		Succeeded:       agg.Succeeded(),
		Failed:          agg.Failed(),
		PollErrors:      agg.PollErrors(),
		PeakConcurrency: int(m.Peak()),
		StopReason:      stopped.Reason,
		Duration:        time.Since(start),
	}
	if res.Errors == nil {
		res.Errors = []error{}
	}

	d.log.Infof(ctx, "finished processing available messages in queue: reason=%s polls=%d received=%d succeeded=%d failed=%d duration=%s",
		res.StopReason, res.Polls, res.Received, res.Succeeded, res.Failed, res.Duration)
	if len(res.Errors) > 0 {
		d.log.Errorf(ctx, "number of errors detected: %d", len(res.Errors))
	}
	return res, nil
}
