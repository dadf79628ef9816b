// Package budget builds stop predicates that tell the drainer when the
// caller's execution budget is nearly spent.
//
// A StopFunc is evaluated before every poll, so implementations here are
// cheap, side-effect free and safe for concurrent use.
package budget

import (
	"context"
	"time"
)

// DefaultFloor is the remaining-time margin under which a Lambda-style caller
// should stop producing new work.
const DefaultFloor = 15 * time.Second

// StopFunc reports whether the drainer should stop issuing polls.
type StopFunc func() bool

// Never never asks the drainer to stop.
func Never() bool { return false }

// Remaining stops once the time left before ctx's deadline drops below floor.
// Contexts without a deadline never trigger.
func Remaining(ctx context.Context, floor time.Duration) StopFunc {
	return remaining(ctx, floor, time.Now)
}

func remaining(ctx context.Context, floor time.Duration, now func() time.Time) StopFunc {
	deadline, ok := ctx.Deadline()
	if !ok {
		return Never
	}
	return func() bool {
		return deadline.Sub(now()) < floor
	}
}

// After stops once d has elapsed since After was called.
func After(d time.Duration) StopFunc {
	return after(d, time.Now)
}

func after(d time.Duration, now func() time.Time) StopFunc {
	end := now().Add(d)
	return func() bool {
		return !now().Before(end)
	}
}

// Any stops as soon as one of fns does. Nil entries are ignored.
func Any(fns ...StopFunc) StopFunc {
	return func() bool {
		for _, fn := range fns {
			if fn != nil && fn() {
				return true
			}
		}
		return false
	}
}
