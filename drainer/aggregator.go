package drainer

import (
	"context"
	"errors"

	"github.com/baldanca/sqs-drainer/dispatch"
	"github.com/baldanca/sqs-drainer/logger"
	"github.com/baldanca/sqs-drainer/source"
)

// Aggregator folds a merged outcome stream into run totals. Failures never
// stop consumption; each error is kept in arrival order.
type Aggregator struct {
	log logger.Logger

	errs      []error
	succeeded int
	failed    int
	pollErrs  int
}

func NewAggregator(log logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{log: log}
}

// Drain consumes outcomes until the channel is closed.
func (a *Aggregator) Drain(ctx context.Context, outcomes <-chan dispatch.Outcome) {
	for o := range outcomes {
		a.Add(ctx, o)
	}
}

// Add records one outcome.
func (a *Aggregator) Add(ctx context.Context, o dispatch.Outcome) {
	if o.OK() {
		a.succeeded++
		return
	}

	a.log.Errorf(ctx, "error detected: %v", o.Err)
	a.errs = append(a.errs, o.Err)

	var perr *source.PollError
	if errors.As(o.Err, &perr) {
		a.pollErrs++
		return
	}
	a.failed++
}

// Errors returns the recorded errors in arrival order.
func (a *Aggregator) Errors() []error { return a.errs }

func (a *Aggregator) Succeeded() int { return a.succeeded }

// Failed counts failed invocations; poll errors are not included.
func (a *Aggregator) Failed() int { return a.failed }

func (a *Aggregator) PollErrors() int { return a.pollErrs }
