package domain

import "fmt"

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// statusRanks orders statuses for monotonic merging. A client may only move
// to a higher rank; cancelled is terminal and absorbs everything.
var statusRanks = map[Status]int{
	StatusPending:   0,
	StatusPreparing: 1,
	StatusReady:     2,
	StatusCompleted: 3,
	StatusCancelled: 99,
}

// Rank returns the merge rank of s. Unknown statuses rank lowest.
func (s Status) Rank() int { return statusRanks[s] }

func (s Status) Valid() bool {
	_, ok := statusRanks[s]
	return ok
}

// Terminal reports whether no further transition is accepted from s.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// InvalidTransitionError is returned when a requested status change is not
// allowed by the transition table.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// transitions lists the allowed next states per current state.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

// Transition validates current -> requested against the lifecycle table and
// returns the new status. It never mutates anything; callers persist the
// result only on success.
func Transition(current, requested Status) (Status, error) {
	if !requested.Valid() {
		return "", fmt.Errorf("unknown status %q", string(requested))
	}
	for _, next := range transitions[current] {
		if next == requested {
			return requested, nil
		}
	}
	return "", &InvalidTransitionError{From: current, To: requested}
}
