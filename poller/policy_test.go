package poller

import "testing"

func TestTerminationState_Observe(t *testing.T) {
	s := TerminationState{MaxEmptyPolls: 1}

	s.Observe(0)
	s.Observe(0)
	if s.ConsecutiveEmptyPolls != 2 {
		t.Fatalf("empty=%d want=2", s.ConsecutiveEmptyPolls)
	}
	s.Observe(3)
	if s.ConsecutiveEmptyPolls != 0 {
		t.Fatalf("empty=%d want=0 after non-empty batch", s.ConsecutiveEmptyPolls)
	}
}

func TestShouldStop(t *testing.T) {
	yes := func() bool { return true }
	no := func() bool { return false }

	cases := []struct {
		name  string
		state TerminationState
		stop  func() bool
		want  bool
	}{
		{"fresh", TerminationState{0, 1}, no, false},
		{"at threshold", TerminationState{1, 1}, no, false},
		{"over threshold", TerminationState{2, 1}, no, true},
		{"zero tolerance", TerminationState{1, 0}, no, true},
		{"predicate", TerminationState{0, 1}, yes, true},
		{"nil predicate", TerminationState{0, 1}, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldStop(tc.state, tc.stop); got != tc.want {
				t.Fatalf("ShouldStop(%+v)=%v want=%v", tc.state, got, tc.want)
			}
		})
	}
}

func TestShouldStop_ExhaustionWinsOverPredicate(t *testing.T) {
	called := false
	stop := func() bool { called = true; return true }

	if r := decide(TerminationState{ConsecutiveEmptyPolls: 5, MaxEmptyPolls: 1}, stop); r != ReasonExhausted {
		t.Fatalf("reason=%s want=exhausted", r)
	}
	if called {
		t.Fatalf("predicate should not be consulted once exhausted")
	}
}

func TestReason_String(t *testing.T) {
	for r, want := range map[Reason]string{
		ReasonNone:       "running",
		ReasonExhausted:  "exhausted",
		ReasonPolicy:     "policy_triggered",
		ReasonPollFailed: "poll_failed",
		ReasonCanceled:   "canceled",
	} {
		if r.String() != want {
			t.Fatalf("%d: %q want %q", r, r.String(), want)
		}
	}
}
