package domain

import "time"

// CycleState is the position of one account-cycle in its state machine:
// Fetched → Published → Anchored → Done, or Failed from any state.
type CycleState string

const (
	StatePending   CycleState = "pending"
	StateFetched   CycleState = "fetched"
	StatePublished CycleState = "published"
	StateAnchored  CycleState = "anchored"
	StateDone      CycleState = "done"
	StateFailed    CycleState = "failed"
	// StateSkipped marks an account whose previous cycle was still in flight.
	StateSkipped CycleState = "skipped"
)

// Terminal reports whether no further transition can follow s.
func (s CycleState) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateSkipped
}

// CycleResult is the explicit outcome of one account-cycle. The scheduler
// aggregates these per tick instead of relying on exceptions.
type CycleResult struct {
	RunID   string
	Account string
	State   CycleState
	// Reached is the last non-terminal state the cycle completed. For a
	// failed cycle it tells which phase broke.
	Reached CycleState

	Fetched   int
	Reposts   int
	Malformed int
	Published int
	Existing  int
	Created   int
	Patched   int
	// ItemFailures counts sub-items that failed without failing the cycle
	// (partial batch policy) or alongside a cycle failure.
	ItemFailures int

	Cursor     string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time spent in the cycle.
func (r CycleResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ErrorString returns the failure reason or "" when the cycle succeeded.
func (r CycleResult) ErrorString() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
