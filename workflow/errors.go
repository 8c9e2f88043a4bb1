// Package workflow implements the execution and checkpoint coordination
// engine for multi-agent workflows with mandatory human review checkpoints.
package workflow

import (
	"fmt"

	"github.com/maestro-ai/maestro-go/workflow/store"
)

// ValidationError indicates a request that can never succeed as given, such
// as an empty prompt or an action outside a checkpoint's declared set.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// InvalidTransitionError indicates a status change the transition table does
// not permit. The workflow record is left untouched.
type InvalidTransitionError struct {
	WorkflowID string
	From       store.Status
	To         store.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("workflow %s: invalid transition %s -> %s", e.WorkflowID, e.From, e.To)
}

// ConcurrentModificationError indicates a second actor raced on the same
// workflow: a duplicate resume, a resolution of an already-resolved
// checkpoint, or a second pending checkpoint.
type ConcurrentModificationError struct {
	WorkflowID string
	Op         string
	Err        error
}

func (e *ConcurrentModificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("workflow %s: concurrent %s: %v", e.WorkflowID, e.Op, e.Err)
	}
	return fmt.Sprintf("workflow %s: concurrent %s", e.WorkflowID, e.Op)
}

func (e *ConcurrentModificationError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure. When persistence fails the
// operation that needed it is abandoned; in-memory state is never advanced
// past what the store recorded.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
