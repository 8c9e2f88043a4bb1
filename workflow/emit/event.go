package emit

import "time"

// Event types emitted by the engine and coordinator. Each carries the
// workflow ID plus type-specific payload fields in Meta.
const (
	// TypeStatusUpdate is emitted after every workflow status transition.
	// Meta: "status" (new status string), "previous" (old status string).
	TypeStatusUpdate = "status_update"

	// TypeCheckpointReady is emitted after a checkpoint is created and the
	// workflow suspends. Meta: "checkpoint_id", "checkpoint_number",
	// "step_name".
	TypeCheckpointReady = "checkpoint_ready"

	// TypeWorkflowCompleted is emitted when a workflow reaches COMPLETED.
	TypeWorkflowCompleted = "workflow_completed"

	// TypeWorkflowFailed is emitted when a workflow reaches FAILED.
	// Meta: "error" (persisted error detail).
	TypeWorkflowFailed = "workflow_failed"

	// TypeWorkflowCancelled is emitted when a workflow reaches CANCELLED.
	TypeWorkflowCancelled = "workflow_cancelled"

	// TypeWorkerStarted and TypeWorkerFinished bracket each worker
	// invocation. Meta: "worker", "kind"; finished adds "duration_ms" and
	// "error" on failure.
	TypeWorkerStarted  = "worker_started"
	TypeWorkerFinished = "worker_finished"

	// TypeError is emitted for operational errors that do not fail the
	// workflow, such as a dropped notification subscriber.
	TypeError = "error"
)

// Event is a single observability notification.
//
// Events flow to an Emitter which can log them, export them as spans, buffer
// them for inspection, or fan them out to live subscribers. Events are fire
// and forget: emitting never blocks workflow execution and delivery is not
// guaranteed. The store, not the event stream, is the source of truth.
type Event struct {
	// Type is one of the Type* constants.
	Type string

	// WorkflowID identifies the workflow that emitted this event.
	WorkflowID string

	// Msg is a short human-readable description.
	Msg string

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Meta contains type-specific payload fields. Common keys:
	//   - "status": new workflow status
	//   - "checkpoint_id": checkpoint identifier
	//   - "checkpoint_number": per-workflow checkpoint number
	//   - "duration_ms": worker call duration in milliseconds
	//   - "error": error detail
	Meta map[string]interface{}
}
