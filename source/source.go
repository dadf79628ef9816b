package source

import (
	"context"
	"fmt"
)

// Message represents one unit of work received from a queue.
//
// Handle is source-specific (for SQS it is the receipt handle) and is carried
// through untouched so callers can acknowledge the message out of band.
type Message struct {
	ID     string
	Handle string
	Body   string
}

// Batch is the ordered result of a single poll. An empty Batch is a valid,
// non-error outcome.
type Batch []Message

// Receiver issues one poll request against a queue and returns what it got.
//
// Implementations must not buffer or prefetch: the drainer relies on every
// call corresponding to exactly one request to the backend.
type Receiver interface {
	Receive(ctx context.Context, queueURL string) (Batch, error)
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(ctx context.Context, queueURL string) (Batch, error)

func (f ReceiverFunc) Receive(ctx context.Context, queueURL string) (Batch, error) {
	return f(ctx, queueURL)
}

// PollError reports a failed poll. Attempt is the 1-based poll number within
// the run.
type PollError struct {
	QueueURL string
	Attempt  int
	Err      error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll %d on %s: %v", e.Attempt, e.QueueURL, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }
