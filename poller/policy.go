package poller

import "github.com/baldanca/sqs-drainer/budget"

// DefaultMaxEmptyPolls is the number of consecutive empty polls tolerated
// before the queue counts as exhausted. The comparison is strict, so a
// value of 1 allows two empty polls in a row.
const DefaultMaxEmptyPolls = 1

// TerminationState tracks consecutive empty polls. Only the Poller mutates it.
type TerminationState struct {
	ConsecutiveEmptyPolls int
	MaxEmptyPolls         int
}

// Observe records the size of a completed poll.
func (s *TerminationState) Observe(n int) {
	if n > 0 {
		s.ConsecutiveEmptyPolls = 0
		return
	}
	s.ConsecutiveEmptyPolls++
}

// Exhausted reports whether the empty-poll threshold has been exceeded.
func (s TerminationState) Exhausted() bool {
	return s.ConsecutiveEmptyPolls > s.MaxEmptyPolls
}

// ShouldStop is the termination policy: stop when the queue looks exhausted
// or when the external predicate says the budget is spent. stop is called on
// every evaluation and may be nil.
func ShouldStop(state TerminationState, stop budget.StopFunc) bool {
	return decide(state, stop) != ReasonNone
}

func decide(state TerminationState, stop budget.StopFunc) Reason {
	if state.Exhausted() {
		return ReasonExhausted
	}
	if stop != nil && stop() {
		return ReasonPolicy
	}
	return ReasonNone
}
