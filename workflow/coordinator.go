package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/maestro-ai/maestro-go/workflow/emit"
	"github.com/maestro-ai/maestro-go/workflow/store"
)

// Checkpoint resolution actions. Each checkpoint declares which subset
// applies; a resolution carrying any other action is rejected.
const (
	ActionSendToReviewers          = "send_to_reviewers"
	ActionEditAndContinue          = "edit_and_continue"
	ActionRequestRevision          = "request_revision"
	ActionEditPromptAndRevise      = "edit_prompt_and_revise"
	ActionApprove                  = "approve"
	ActionCancel                   = "cancel"
	ActionSendToPlannerForRevision = "send_to_planner_for_revision"
)

// Checkpoint step names.
const (
	StepPlanReadyForReview           = "plan_ready_for_review"
	StepReviewsReadyForConsolidation = "reviews_ready_for_consolidation"
	StepEditReviewerPrompt           = "edit_reviewer_prompt"
	StepEditPlannerPrompt            = "edit_planner_prompt"
)

// actionStatus maps a resolution action to the checkpoint status it records.
// Unlisted actions are invalid.
var actionStatus = map[string]store.CheckpointStatus{
	ActionSendToReviewers:          store.CheckpointApproved,
	ActionSendToPlannerForRevision: store.CheckpointApproved,
	ActionRequestRevision:          store.CheckpointApproved,
	ActionApprove:                  store.CheckpointApproved,
	ActionEditAndContinue:          store.CheckpointEdited,
	ActionEditPromptAndRevise:      store.CheckpointEdited,
	ActionCancel:                   store.CheckpointRejected,
}

// Coordinator manages checkpoint lifecycle: creating a checkpoint when the
// engine suspends and applying the human's resolution.
//
// Suspension order is fixed for crash consistency. The continuation is
// persisted first, then the checkpoint, then the status transition to
// AWAITING_CHECKPOINT. A crash between any two steps leaves a state that
// Recover can detect and roll forward; at no point does a checkpoint exist
// without the continuation needed to act on its resolution.
type Coordinator struct {
	store   store.Store
	sync    *StatusSync
	emitter emit.Emitter
	metrics *Metrics
}

// NewCoordinator creates a Coordinator sharing the engine's status
// synchronizer.
func NewCoordinator(st store.Store, sync *StatusSync, emitter emit.Emitter, metrics *Metrics) *Coordinator {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &Coordinator{
		store:   st,
		sync:    sync,
		emitter: emitter,
		metrics: metrics,
	}
}

// CheckpointSpec describes the checkpoint to create at a suspension point.
type CheckpointSpec struct {
	StepName        string
	EditableContent string
	Instructions    string
	Actions         store.ActionSet
	WorkerOutputs   []store.WorkerOutput
	Iteration       int
}

// Suspend persists the continuation, creates the pending checkpoint, and
// moves the workflow to AWAITING_CHECKPOINT.
//
// Returns ConcurrentModificationError if the workflow already has a pending
// checkpoint.
func (c *Coordinator) Suspend(ctx context.Context, workflowID string, cont *store.Continuation, spec CheckpointSpec) (*store.Checkpoint, error) {
	cont.WorkflowID = workflowID
	cont.UpdatedAt = time.Now().UTC()
	if err := c.store.SaveContinuation(ctx, cont); err != nil {
		return nil, &PersistenceError{Op: "continuation save", Err: err}
	}

	cp := &store.Checkpoint{
		ID:              uuid.NewString(),
		WorkflowID:      workflowID,
		StepName:        spec.StepName,
		EditableContent: spec.EditableContent,
		Instructions:    spec.Instructions,
		Actions:         spec.Actions,
		WorkerOutputs:   spec.WorkerOutputs,
		Iteration:       spec.Iteration,
		CreatedAt:       time.Now().UTC(),
	}
	if err := c.store.CreateCheckpoint(ctx, cp); err != nil {
		if errors.Is(err, store.ErrPendingCheckpointExists) {
			return nil, &ConcurrentModificationError{
				WorkflowID: workflowID,
				Op:         "checkpoint creation",
				Err:        err,
			}
		}
		return nil, &PersistenceError{Op: "checkpoint creation", Err: err}
	}

	if err := c.sync.Apply(ctx, workflowID, store.StatusAwaitingCheckpoint, store.WorkflowUpdate{}); err != nil {
		return nil, err
	}

	c.metrics.checkpointCreated()
	c.emitter.Emit(emit.Event{
		Type:       emit.TypeCheckpointReady,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Meta: map[string]interface{}{
			"checkpoint_id":     cp.ID,
			"checkpoint_number": cp.Number,
			"step_name":         cp.StepName,
		},
	})
	return cp, nil
}

// Resolution is a human's decision on a pending checkpoint.
type Resolution struct {
	// Action must be in the checkpoint's declared action set.
	Action string

	// EditedContent replaces the checkpoint's editable content downstream.
	// Empty means the content is used as presented.
	EditedContent string

	// Notes is an optional free-form comment recorded with the resolution.
	Notes string

	// ResolvedBy identifies the human, for the audit trail.
	ResolvedBy string
}

// Resolve validates and applies a resolution to the checkpoint.
//
// The action must belong to the checkpoint's declared set; the resulting
// resolution status is derived from the action, never supplied by the
// caller. Resolution is a compare-and-set: a second resolution attempt
// returns ConcurrentModificationError and leaves the first outcome in place.
func (c *Coordinator) Resolve(ctx context.Context, checkpointID string, res Resolution) (*store.Checkpoint, error) {
	cp, err := c.store.GetCheckpoint(ctx, checkpointID)
	if err != nil {
		return nil, err
	}

	if !cp.Actions.Contains(res.Action) {
		return nil, &ValidationError{
			Field:   "action",
			Message: "action " + res.Action + " is not available for checkpoint " + checkpointID,
		}
	}
	status, ok := actionStatus[res.Action]
	if !ok {
		return nil, &ValidationError{
			Field:   "action",
			Message: "unknown action " + res.Action,
		}
	}

	resolved, err := c.store.ResolveCheckpoint(ctx, checkpointID, store.CheckpointResolution{
		Status:        status,
		Action:        res.Action,
		EditedContent: res.EditedContent,
		Notes:         res.Notes,
		ResolvedBy:    res.ResolvedBy,
		ResolvedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrCheckpointResolved) {
			return nil, &ConcurrentModificationError{
				WorkflowID: cp.WorkflowID,
				Op:         "checkpoint resolution",
				Err:        err,
			}
		}
		return nil, &PersistenceError{Op: "checkpoint resolution", Err: err}
	}

	c.metrics.checkpointResolved(string(status))
	return resolved, nil
}

// Pending returns the workflow's pending checkpoint, always read from the
// store.
func (c *Coordinator) Pending(ctx context.Context, workflowID string) (*store.Checkpoint, error) {
	return c.store.PendingCheckpoint(ctx, workflowID)
}
