package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/baldanca/sqs-drainer/logger"
	"github.com/baldanca/sqs-drainer/source"
)

// Invoker runs one unit of work on a worker. Failures are returned, never
// panicked; the Dispatcher converts them into Outcomes.
type Invoker interface {
	Invoke(ctx context.Context, workerID string, msg source.Message) error
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, workerID string, msg source.Message) error

func (f InvokerFunc) Invoke(ctx context.Context, workerID string, msg source.Message) error {
	return f(ctx, workerID, msg)
}

// Outcome is the result of one dispatched message. A nil Err means success.
type Outcome struct {
	MessageID string
	Err       error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Pending is a not-yet-started operation. Calling it runs the operation to
// completion and never panics.
type Pending func(ctx context.Context) Outcome

// Failed returns a Pending that resolves immediately to a failure. It is used
// to carry poll errors through the same stream as invocation outcomes.
func Failed(messageID string, err error) Pending {
	return func(context.Context) Outcome {
		return Outcome{MessageID: messageID, Err: err}
	}
}

// InvocationError reports a failed worker invocation for a single message.
type InvocationError struct {
	WorkerID  string
	MessageID string
	Err       error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s for message %s: %v", e.WorkerID, e.MessageID, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRetry retries failed invocations according to p. A nil policy means a
// single attempt.
func WithRetry(p RetryPolicy) Option {
	return func(d *Dispatcher) {
		if p == nil {
			p = nopRetry{}
		}
		d.retry = p
	}
}

// WithTimeout bounds every invocation (all retry attempts included).
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// Dispatcher turns messages into Pending invocations against one worker.
// It holds no per-run state, so Dispatch may be called from any goroutine.
type Dispatcher struct {
	inv      Invoker
	workerID string

	retry   RetryPolicy
	timeout time.Duration
	log     logger.Logger
}

func NewDispatcher(inv Invoker, workerID string, opts ...Option) *Dispatcher {
	if inv == nil {
		panic("invoker is required")
	}
	if workerID == "" {
		panic("worker id is required")
	}
	d := &Dispatcher{
		inv:      inv,
		workerID: workerID,
		retry:    nopRetry{},
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WorkerID returns the worker every dispatch targets.
func (d *Dispatcher) WorkerID() string { return d.workerID }

// Dispatch wraps msg into a Pending invocation. Nothing runs until the
// Pending is called.
func (d *Dispatcher) Dispatch(msg source.Message) Pending {
	return func(ctx context.Context) (out Outcome) {
		out.MessageID = msg.ID

		defer func() {
			if r := recover(); r != nil {
				correlationID := uuid.NewString()
				d.log.Errorf(ctx, "invoker panic correlation_id=%s message_id=%s panic=%v stack=%s",
					correlationID, msg.ID, r, debug.Stack())
				out.Err = &InvocationError{
					WorkerID:  d.workerID,
					MessageID: msg.ID,
					Err:       fmt.Errorf("invoker panic (correlation_id: %s)", correlationID),
				}
			}
		}()

		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}

		err := d.retry.Do(ctx, func(ctx context.Context) error {
			return d.inv.Invoke(ctx, d.workerID, msg)
		})
		if err != nil {
			out.Err = &InvocationError{WorkerID: d.workerID, MessageID: msg.ID, Err: err}
		}
		return out
	}
}
