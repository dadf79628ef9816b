// Package merge runs a stream of operations with bounded concurrency and
// merges their results in completion order.
package merge

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

// DefaultLimit caps concurrent operations when no limit is configured.
const DefaultLimit = 50

// Op is a pending operation. It must not panic.
type Op[T any] func(ctx context.Context) T

// Merger runs Ops from an input channel with at most Limit unresolved at any
// instant. A slot is held from the moment an Op starts until its result has
// been handed to the output channel, and is refilled from the input as soon as
// it frees up.
type Merger[T any] struct {
	limit int
	sem   *semaphore.Weighted

	inFlight *atomic.Int64
	peak     *atomic.Int64
	started  *atomic.Int64
}

func New[T any](limit int) *Merger[T] {
	if limit < 1 {
		panic("merge limit must be at least 1")
	}
	return &Merger[T]{
		limit:    limit,
		sem:      semaphore.NewWeighted(int64(limit)),
		inFlight: atomic.NewInt64(0),
		peak:     atomic.NewInt64(0),
		started:  atomic.NewInt64(0),
	}
}

// Run starts consuming in and returns the merged result stream. The output is
// closed only after in is closed and every started Op has delivered its
// result. ctx is handed to each Op as is; Run itself never abandons started
// work, so callers wanting in-flight Ops to outlive cancellation should pass a
// detached context.
//
// The caller must drain the returned channel.
func (m *Merger[T]) Run(ctx context.Context, in <-chan Op[T]) <-chan T {
	out := make(chan T, m.limit)

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(out)
		}()

		for op := range in {
			// Background never cancels, so Acquire only fails on misuse.
			if err := m.sem.Acquire(context.Background(), 1); err != nil {
				panic(err)
			}

			wg.Add(1)
			m.started.Inc()
			m.trackPeak(m.inFlight.Inc())

			go func(op Op[T]) {
				defer wg.Done()
				res := op(ctx)
				out <- res
				m.inFlight.Dec()
				m.sem.Release(1)
			}(op)
		}
	}()

	return out
}

func (m *Merger[T]) trackPeak(n int64) {
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CAS(p, n) {
			return
		}
	}
}

// Limit returns the configured concurrency ceiling.
func (m *Merger[T]) Limit() int { return m.limit }

// InFlight returns the number of Ops currently holding a slot.
func (m *Merger[T]) InFlight() int64 { return m.inFlight.Load() }

// Peak returns the highest number of simultaneously held slots observed.
func (m *Merger[T]) Peak() int64 { return m.peak.Load() }

// Started returns the number of Ops started so far.
func (m *Merger[T]) Started() int64 { return m.started.Load() }
