// Package store provides durable persistence for workflows, checkpoints,
// worker executions, and the append-only message log.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested workflow, checkpoint, execution,
// or continuation does not exist.
var ErrNotFound = errors.New("not found")

// ErrPendingCheckpointExists is returned by CreateCheckpoint when the owning
// workflow already has a checkpoint awaiting resolution. At most one pending
// checkpoint may exist per workflow.
var ErrPendingCheckpointExists = errors.New("pending checkpoint already exists")

// ErrCheckpointResolved is returned by ResolveCheckpoint when the checkpoint
// is no longer pending. Double-resolution is rejected, never silently merged;
// the first resolution stays intact.
var ErrCheckpointResolved = errors.New("checkpoint already resolved")

// Status is the lifecycle status of a workflow.
//
// The legal transitions form a closed state machine:
//
//	pending  → running
//	running  → awaiting_checkpoint | completed | failed | cancelled
//	awaiting_checkpoint → running | completed | failed | cancelled
//	completed, failed, cancelled → (terminal)
//
// Transition legality is enforced by the workflow package before any write
// reaches the store; the store additionally constrains the column to these
// six values.
type Status string

const (
	StatusPending            Status = "pending"
	StatusRunning            Status = "running"
	StatusAwaitingCheckpoint Status = "awaiting_checkpoint"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusCancelled          Status = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Valid reports whether s is one of the six known workflow statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusAwaitingCheckpoint,
		StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CheckpointStatus is the resolution status of a checkpoint.
type CheckpointStatus string

const (
	CheckpointPending  CheckpointStatus = "pending"
	CheckpointApproved CheckpointStatus = "approved"
	CheckpointRejected CheckpointStatus = "rejected"
	CheckpointEdited   CheckpointStatus = "edited"
)

// ExecutionStatus is the lifecycle status of a single worker invocation.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Workflow is a single workflow instance. It is created when a run starts,
// mutated only through status updates, and never deleted by the engine
// (deletion is an administrative action that cascades to all child records).
type Workflow struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Status        Status          `json:"status"`
	WorkspacePath string          `json:"workspace_path,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// WorkflowUpdate carries the optional fields written alongside a status
// change. Nil fields are left untouched.
type WorkflowUpdate struct {
	// CompletedAt is set when the workflow reaches a terminal status.
	CompletedAt *time.Time

	// Result replaces the workflow's opaque result payload. For FAILED
	// workflows this carries the persisted error detail.
	Result json.RawMessage
}

// WorkerOutput is one worker's contribution captured in a checkpoint.
type WorkerOutput struct {
	WorkerName string    `json:"worker_name"`
	WorkerKind string    `json:"worker_kind"`
	Output     string    `json:"output"`
	Timestamp  time.Time `json:"timestamp"`
}

// ActionSet declares the actions a human may take to resolve a checkpoint.
// Primary is the suggested action; Secondary is an ordered list of
// alternatives. A resolution carrying any other action is invalid.
type ActionSet struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary"`
}

// Contains reports whether action is part of the declared set.
func (a ActionSet) Contains(action string) bool {
	if action == a.Primary {
		return true
	}
	for _, s := range a.Secondary {
		if s == action {
			return true
		}
	}
	return false
}

// Checkpoint is a durable record of a point where the engine suspended
// pending a human decision. Created exactly once when the engine suspends,
// mutated exactly once when resolved.
type Checkpoint struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`

	// Number is monotonically increasing per workflow, starting at 1.
	// Assigned by the store at creation time.
	Number int `json:"checkpoint_number"`

	StepName        string           `json:"step_name"`
	WorkerOutputs   []WorkerOutput   `json:"worker_outputs"`
	EditableContent string           `json:"editable_content"`
	Instructions    string           `json:"instructions"`
	Actions         ActionSet        `json:"actions"`
	Iteration       int              `json:"iteration"`
	Resolution      CheckpointStatus `json:"resolution"`
	Action          string           `json:"action,omitempty"`
	EditedContent   string           `json:"edited_content,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	ResolvedBy      string           `json:"resolved_by,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
}

// CheckpointResolution is the mutation applied to a pending checkpoint.
type CheckpointResolution struct {
	Status        CheckpointStatus
	Action        string
	EditedContent string
	Notes         string
	ResolvedBy    string
	ResolvedAt    time.Time
}

// Execution records a single worker invocation. Created when the call
// begins, updated once on completion or failure, immutable afterward.
type Execution struct {
	ID          int64           `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	WorkerName  string          `json:"worker_name"`
	WorkerKind  string          `json:"worker_kind"`
	Input       string          `json:"input"`
	Output      string          `json:"output,omitempty"`
	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	ElapsedMS   int64           `json:"elapsed_ms,omitempty"`
}

// Message is an append-only conversation log entry. Messages are the audit
// trail of user-visible step output and are never mutated or deleted.
type Message struct {
	ID         int64     `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	WorkerName string    `json:"worker_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Continuation is the durably persisted state needed to resume a suspended
// workflow at the correct graph position. One row per workflow, upserted at
// every suspension point.
type Continuation struct {
	WorkflowID string          `json:"workflow_id"`
	Node       string          `json:"node"`
	State      json.RawMessage `json:"state"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Store is the durable persistence interface for the four workflow entities
// plus continuations.
//
// Implementations:
//   - MemStore: in-memory, for tests and prototyping
//   - SQLiteStore: single-file database, zero setup
//   - MySQLStore: shared relational database
//
// All mutation flows through the workflow package's status synchronizer or
// checkpoint coordinator; engine step logic never writes directly.
type Store interface {
	// CreateWorkflow persists a new workflow record.
	CreateWorkflow(ctx context.Context, wf *Workflow) error

	// GetWorkflow retrieves a workflow by ID. Returns ErrNotFound if absent.
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)

	// UpdateWorkflowStatus atomically writes a new status plus the optional
	// update fields. Returns ErrNotFound if the workflow does not exist.
	// It does not validate transition legality; that is the caller's job.
	UpdateWorkflowStatus(ctx context.Context, id string, status Status, upd WorkflowUpdate) error

	// ListWorkflowsByStatus returns workflows whose status is any of the
	// given values, ordered by creation time; no values means all
	// workflows. Used for active-workflow scans and crash recovery.
	ListWorkflowsByStatus(ctx context.Context, statuses ...Status) ([]*Workflow, error)

	// DeleteWorkflow removes a workflow and cascades to its checkpoints,
	// executions, messages, and continuation.
	DeleteWorkflow(ctx context.Context, id string) error

	// CreateCheckpoint persists a new pending checkpoint, assigning the
	// next per-workflow checkpoint number (starting at 1). Returns
	// ErrPendingCheckpointExists if the workflow already has a pending
	// checkpoint.
	CreateCheckpoint(ctx context.Context, cp *Checkpoint) error

	// GetCheckpoint retrieves a checkpoint by ID.
	GetCheckpoint(ctx context.Context, id string) (*Checkpoint, error)

	// PendingCheckpoint returns the workflow's pending checkpoint, or
	// ErrNotFound if none is pending.
	PendingCheckpoint(ctx context.Context, workflowID string) (*Checkpoint, error)

	// ResolveCheckpoint applies a resolution to a pending checkpoint as a
	// compare-and-set: it succeeds only if the checkpoint is still pending,
	// otherwise it returns ErrCheckpointResolved and leaves the persisted
	// resolution untouched.
	ResolveCheckpoint(ctx context.Context, id string, res CheckpointResolution) (*Checkpoint, error)

	// ListCheckpoints returns all checkpoints for a workflow ordered by
	// checkpoint number. This is the audit history, pending included.
	ListCheckpoints(ctx context.Context, workflowID string) ([]*Checkpoint, error)

	// CreateExecution persists a new execution record and assigns its ID.
	CreateExecution(ctx context.Context, ex *Execution) error

	// FinishExecution records the terminal status, output, completion time,
	// and elapsed duration of an execution.
	FinishExecution(ctx context.Context, id int64, status ExecutionStatus, output string, completedAt time.Time) error

	// ListExecutions returns all executions for a workflow ordered by start
	// time.
	ListExecutions(ctx context.Context, workflowID string) ([]*Execution, error)

	// AppendMessage appends a message to the workflow's conversation log.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit most recent messages for a workflow
	// in chronological order. limit <= 0 returns all messages.
	ListMessages(ctx context.Context, workflowID string, limit int) ([]*Message, error)

	// SaveContinuation upserts the workflow's continuation.
	SaveContinuation(ctx context.Context, c *Continuation) error

	// LoadContinuation retrieves the workflow's continuation, or ErrNotFound.
	LoadContinuation(ctx context.Context, workflowID string) (*Continuation, error)

	// Close releases the store's resources. After Close, all operations
	// return an error.
	Close() error
}
