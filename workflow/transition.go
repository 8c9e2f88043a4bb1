package workflow

import "github.com/maestro-ai/maestro-go/workflow/store"

// transitions is the complete set of legal workflow status changes. Anything
// absent from this table is rejected with InvalidTransitionError. Terminal
// statuses have no outgoing edges.
var transitions = map[store.Status][]store.Status{
	store.StatusPending: {
		store.StatusRunning,
	},
	store.StatusRunning: {
		store.StatusAwaitingCheckpoint,
		store.StatusCompleted,
		store.StatusFailed,
		store.StatusCancelled,
	},
	store.StatusAwaitingCheckpoint: {
		store.StatusRunning,
		store.StatusCompleted,
		store.StatusFailed,
		store.StatusCancelled,
	},
	store.StatusCompleted: nil,
	store.StatusFailed:    nil,
	store.StatusCancelled: nil,
}

// CanTransition reports whether the status change from -> to is legal.
// A self-transition is not legal; every edge in the table changes status.
func CanTransition(from, to store.Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
