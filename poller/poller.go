package poller

import (
	"context"

	"github.com/baldanca/sqs-drainer/budget"
	"github.com/baldanca/sqs-drainer/logger"
	"github.com/baldanca/sqs-drainer/source"
)

// Reason says why a Poller stopped.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonExhausted: too many consecutive empty polls.
	ReasonExhausted
	// ReasonPolicy: the external stop predicate fired.
	ReasonPolicy
	// ReasonPollFailed: a poll returned an error.
	ReasonPollFailed
	// ReasonCanceled: the run context was canceled.
	ReasonCanceled
)

func (r Reason) String() string {
	switch r {
	case ReasonExhausted:
		return "exhausted"
	case ReasonPolicy:
		return "policy_triggered"
	case ReasonPollFailed:
		return "poll_failed"
	case ReasonCanceled:
		return "canceled"
	default:
		return "running"
	}
}

// Stopped is the terminal state of a Poller. Err is set only for
// ReasonPollFailed and is always a *source.PollError.
type Stopped struct {
	Reason Reason
	Err    error
}

// Poller issues strictly sequential polls against one queue and emits the
// received messages in batch order.
type Poller struct {
	recv     source.Receiver
	queueURL string
	stop     budget.StopFunc
	log      logger.Logger

	state    TerminationState
	polls    int
	received int
}

func New(recv source.Receiver, queueURL string, maxEmptyPolls int, stop budget.StopFunc, log logger.Logger) *Poller {
	if recv == nil {
		panic("receiver is required")
	}
	if maxEmptyPolls < 0 {
		panic("max empty polls must be non-negative")
	}
	if stop == nil {
		stop = budget.Never
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Poller{
		recv:     recv,
		queueURL: queueURL,
		stop:     stop,
		log:      log,
		state:    TerminationState{MaxEmptyPolls: maxEmptyPolls},
	}
}

// Run polls until the termination policy fires, ctx is canceled or a poll
// fails. Every received message is sent to out before the next poll is
// issued. Run does not close out.
func (p *Poller) Run(ctx context.Context, out chan<- source.Message) Stopped {
	for {
		if ctx.Err() != nil {
			return p.finish(ctx, Stopped{Reason: ReasonCanceled})
		}
		if reason := decide(p.state, p.stop); reason != ReasonNone {
			return p.finish(ctx, Stopped{Reason: reason})
		}

		p.polls++
		batch, err := p.recv.Receive(ctx, p.queueURL)
		if err != nil {
			// A poll cut short by our own cancellation is not a queue failure.
			if ctx.Err() != nil {
				return p.finish(ctx, Stopped{Reason: ReasonCanceled})
			}
			perr := &source.PollError{QueueURL: p.queueURL, Attempt: p.polls, Err: err}
			return p.finish(ctx, Stopped{Reason: ReasonPollFailed, Err: perr})
		}

		p.state.Observe(len(batch))
		p.log.Debugf(ctx, "poll %d returned %d messages (consecutive empty: %d)",
			p.polls, len(batch), p.state.ConsecutiveEmptyPolls)

		for _, m := range batch {
			out <- m
		}
		p.received += len(batch)
	}
}

func (p *Poller) finish(ctx context.Context, s Stopped) Stopped {
	p.log.Infof(ctx, "poller stopped: reason=%s polls=%d received=%d", s.Reason, p.polls, p.received)
	return s
}

// Polls returns the number of poll requests issued. Only valid after Run returns.
func (p *Poller) Polls() int { return p.polls }

// Received returns the number of messages emitted. Only valid after Run returns.
func (p *Poller) Received() int { return p.received }

// State returns the current termination state.
func (p *Poller) State() TerminationState { return p.state }
