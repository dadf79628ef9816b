package dispatch

import (
	"context"
	"math/rand"
	"time"

	"github.com/baldanca/sqs-drainer/source"
)

// SimulatedInvoker sleeps for a random duration in [Min, Max] and succeeds.
// It stands in for a real worker during local dry runs.
type SimulatedInvoker struct {
	Min time.Duration
	Max time.Duration
}

var DefaultSimulatedInvoker = SimulatedInvoker{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond}

func (s SimulatedInvoker) Invoke(ctx context.Context, _ string, _ source.Message) error {
	d := s.Min
	if s.Max > s.Min {
		d += time.Duration(rand.Int63n(int64(s.Max-s.Min) + 1))
	}
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
