package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maestro-ai/maestro-go/workflow/emit"
	"github.com/maestro-ai/maestro-go/workflow/gateway"
	"github.com/maestro-ai/maestro-go/workflow/store"
)

// Engine drives plan review workflows through their checkpointed lifecycle.
//
// The engine runs segments synchronously: Start executes the planner and
// suspends at the first checkpoint before returning; Resume executes from
// a resolved checkpoint to the next suspension point or terminal status.
// Callers wanting asynchronous execution run these in their own goroutine.
//
// At most one execution segment runs per workflow at a time. A Resume that
// races an in-flight segment fails fast with ConcurrentModificationError
// rather than queueing.
type Engine struct {
	store   store.Store
	router  *gateway.Router
	sync    *StatusSync
	coord   *Coordinator
	emitter emit.Emitter
	metrics *Metrics
	cfg     Config

	mu       sync.Mutex
	inflight map[string]struct{}
	cancels  map[string]context.CancelFunc
}

// NewEngine creates an Engine. emitter and metrics may be nil.
func NewEngine(st store.Store, router *gateway.Router, emitter emit.Emitter, metrics *Metrics, cfg Config) *Engine {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	statusSync := NewStatusSync(st, emitter, metrics)
	return &Engine{
		store:    st,
		router:   router,
		sync:     statusSync,
		coord:    NewCoordinator(st, statusSync, emitter, metrics),
		emitter:  emitter,
		metrics:  metrics,
		cfg:      cfg.normalize(),
		inflight: make(map[string]struct{}),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Coordinator exposes the engine's checkpoint coordinator for resolution and
// pending-checkpoint reads.
func (e *Engine) Coordinator() *Coordinator { return e.coord }

// Status returns the workflow's current status via the synchronizer cache.
func (e *Engine) Status(ctx context.Context, workflowID string) (store.Status, error) {
	return e.sync.Current(ctx, workflowID)
}

// acquire claims the workflow's single execution slot.
func (e *Engine) acquire(workflowID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[workflowID]; busy {
		return &ConcurrentModificationError{WorkflowID: workflowID, Op: "execution"}
	}
	e.inflight[workflowID] = struct{}{}
	return nil
}

func (e *Engine) release(workflowID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, workflowID)
	delete(e.cancels, workflowID)
}

// runCtx derives the cancellable context for a workflow's execution segment
// and registers its cancel func so Cancel can abort in-flight worker calls.
func (e *Engine) runCtx(ctx context.Context, workflowID string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancels[workflowID] = cancel
	e.mu.Unlock()
	return ctx, cancel
}

// Start runs a PENDING workflow through the planning step and suspends at
// the plan review checkpoint. Returns the created checkpoint.
func (e *Engine) Start(ctx context.Context, workflowID string) (*store.Checkpoint, error) {
	if err := e.acquire(workflowID); err != nil {
		return nil, err
	}
	defer e.release(workflowID)

	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf.Status != store.StatusPending {
		return nil, &InvalidTransitionError{WorkflowID: workflowID, From: wf.Status, To: store.StatusRunning}
	}

	var meta struct {
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(wf.Metadata, &meta); err != nil || meta.Prompt == "" {
		return nil, &ValidationError{Field: "metadata", Message: "workflow metadata carries no prompt"}
	}

	if err := e.sync.Apply(ctx, workflowID, store.StatusRunning, store.WorkflowUpdate{}); err != nil {
		return nil, err
	}

	runCtx, cancel := e.runCtx(ctx, workflowID)
	defer cancel()

	state := &RunState{InitialPrompt: meta.Prompt}
	plan, err := e.invokeWorker(runCtx, workflowID, e.cfg.Planner, PlanningPrompt(meta.Prompt))
	if err != nil {
		return nil, e.fail(ctx, workflowID, err)
	}
	state.Plan = plan

	return e.suspendPlanReview(ctx, workflowID, state)
}

// Resume continues a workflow from a resolved checkpoint. The checkpoint
// must already be resolved via the coordinator; Resume dispatches on the
// persisted continuation node and the resolution action, runs to the next
// suspension point or terminal status, and returns the new checkpoint (nil
// when the workflow terminated).
func (e *Engine) Resume(ctx context.Context, workflowID string, cp *store.Checkpoint) (*store.Checkpoint, error) {
	if err := e.acquire(workflowID); err != nil {
		return nil, err
	}
	defer e.release(workflowID)

	status, err := e.sync.Current(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if status != store.StatusAwaitingCheckpoint {
		return nil, &InvalidTransitionError{WorkflowID: workflowID, From: status, To: store.StatusRunning}
	}

	cont, err := e.store.LoadContinuation(ctx, workflowID)
	if err != nil {
		return nil, &PersistenceError{Op: "continuation load", Err: err}
	}
	state, err := decodeContinuation(cont)
	if err != nil {
		return nil, err
	}

	action := resolvedAction(cp)
	if action == ActionCancel {
		return nil, e.finishCancelled(ctx, workflowID)
	}

	switch cont.Node {
	case NodeAwaitPlanReview:
		return e.resumeFromPlanReview(ctx, workflowID, state, cp, action)
	case NodeAwaitReviewerPrompt:
		return e.resumeFromReviewerPrompt(ctx, workflowID, state, cp, action)
	case NodeAwaitConsolidation:
		return e.resumeFromConsolidation(ctx, workflowID, state, cp, action)
	case NodeAwaitPlannerPrompt:
		return e.resumeFromPlannerPrompt(ctx, workflowID, state, cp, action)
	default:
		return nil, fmt.Errorf("unknown continuation node %q for workflow %s", cont.Node, workflowID)
	}
}

func (e *Engine) resumeFromPlanReview(ctx context.Context, workflowID string, state *RunState, cp *store.Checkpoint, action string) (*store.Checkpoint, error) {
	if cp.EditedContent != "" {
		state.EditedPlan = cp.EditedContent
	}

	switch action {
	case ActionSendToReviewers:
		if err := e.resumeRunning(ctx, workflowID); err != nil {
			return nil, err
		}
		return e.runReviewCycle(ctx, workflowID, state)

	case ActionEditAndContinue:
		if err := e.resumeRunning(ctx, workflowID); err != nil {
			return nil, err
		}
		prompt := ReviewPrompt(state.CurrentPlan(), "REVIEW_AGENT")
		return e.suspendReviewerPrompt(ctx, workflowID, state, prompt)

	default:
		return nil, &ValidationError{Field: "action", Message: "action " + action + " is not valid at plan review"}
	}
}

func (e *Engine) resumeFromReviewerPrompt(ctx context.Context, workflowID string, state *RunState, cp *store.Checkpoint, action string) (*store.Checkpoint, error) {
	if action != ActionSendToReviewers {
		return nil, &ValidationError{Field: "action", Message: "action " + action + " is not valid at reviewer prompt edit"}
	}
	if cp.EditedContent != "" {
		state.ReviewerPrompt = cp.EditedContent
	} else {
		state.ReviewerPrompt = cp.EditableContent
	}
	if err := e.resumeRunning(ctx, workflowID); err != nil {
		return nil, err
	}
	return e.runReviewCycle(ctx, workflowID, state)
}

func (e *Engine) resumeFromConsolidation(ctx context.Context, workflowID string, state *RunState, cp *store.Checkpoint, action string) (*store.Checkpoint, error) {
	feedback := cp.EditableContent
	if cp.EditedContent != "" {
		feedback = cp.EditedContent
	}
	state.Feedback = feedback

	switch action {
	case ActionRequestRevision:
		if err := e.resumeRunning(ctx, workflowID); err != nil {
			return nil, err
		}
		prompt := RevisionPrompt(state.CurrentPlan(), state.Feedback)
		return e.runRevisionCycle(ctx, workflowID, state, prompt)

	case ActionEditPromptAndRevise:
		if err := e.resumeRunning(ctx, workflowID); err != nil {
			return nil, err
		}
		prompt := RevisionPrompt(state.CurrentPlan(), state.Feedback)
		return e.suspendPlannerPrompt(ctx, workflowID, state, prompt)

	case ActionApprove:
		return nil, e.complete(ctx, workflowID, state)

	default:
		return nil, &ValidationError{Field: "action", Message: "action " + action + " is not valid at consolidation"}
	}
}

func (e *Engine) resumeFromPlannerPrompt(ctx context.Context, workflowID string, state *RunState, cp *store.Checkpoint, action string) (*store.Checkpoint, error) {
	if action != ActionSendToPlannerForRevision {
		return nil, &ValidationError{Field: "action", Message: "action " + action + " is not valid at planner prompt edit"}
	}
	prompt := cp.EditableContent
	if cp.EditedContent != "" {
		prompt = cp.EditedContent
	}
	state.PlannerPrompt = prompt
	if err := e.resumeRunning(ctx, workflowID); err != nil {
		return nil, err
	}
	return e.runRevisionCycle(ctx, workflowID, state, prompt)
}

// runReviewCycle fans out to the configured reviewers, joins per policy, and
// suspends at the consolidation checkpoint.
func (e *Engine) runReviewCycle(ctx context.Context, workflowID string, state *RunState) (*store.Checkpoint, error) {
	runCtx, cancel := e.runCtx(ctx, workflowID)
	defer cancel()

	reviews, err := e.fanOutReviews(runCtx, workflowID, state)
	if err != nil {
		return nil, e.fail(ctx, workflowID, err)
	}
	state.Reviews = reviews
	state.ReviewerPrompt = ""

	return e.suspendConsolidation(ctx, workflowID, state)
}

// runRevisionCycle sends the revision prompt to the planner, bumps the
// iteration counter, and suspends at the next plan review checkpoint.
func (e *Engine) runRevisionCycle(ctx context.Context, workflowID string, state *RunState, prompt string) (*store.Checkpoint, error) {
	runCtx, cancel := e.runCtx(ctx, workflowID)
	defer cancel()

	plan, err := e.invokeWorker(runCtx, workflowID, e.cfg.Planner, prompt)
	if err != nil {
		return nil, e.fail(ctx, workflowID, err)
	}
	state.Plan = plan
	state.EditedPlan = ""
	state.PlannerPrompt = ""
	state.Reviews = nil
	state.Feedback = ""
	state.Iteration++

	return e.suspendPlanReview(ctx, workflowID, state)
}

// fanOutReviews runs every configured reviewer in parallel and joins the
// results under the configured policy. Results arriving after a cancelled
// fan-out are discarded with the worker goroutines' contexts.
func (e *Engine) fanOutReviews(ctx context.Context, workflowID string, state *RunState) ([]store.WorkerOutput, error) {
	type reviewResult struct {
		idx    int
		output string
		err    error
	}

	workers := e.cfg.Reviewers
	results := make(chan reviewResult, len(workers))
	for i, w := range workers {
		go func(idx int, w gateway.Worker) {
			prompt := state.ReviewerPrompt
			if prompt == "" {
				prompt = ReviewPrompt(state.CurrentPlan(), w.Name)
			}
			output, err := e.invokeWorker(ctx, workflowID, w, prompt)
			results <- reviewResult{idx: idx, output: output, err: err}
		}(i, w)
	}

	outputs := make([]*store.WorkerOutput, len(workers))
	var failures []error
	for range workers {
		res := <-results
		if res.err != nil {
			failures = append(failures, res.err)
			continue
		}
		outputs[res.idx] = &store.WorkerOutput{
			WorkerName: workers[res.idx].Name,
			WorkerKind: workers[res.idx].Kind,
			Output:     res.output,
			Timestamp:  time.Now().UTC(),
		}
	}

	succeeded := len(workers) - len(failures)
	if !e.cfg.Join.Satisfied(succeeded, len(workers)) {
		return nil, fmt.Errorf("review fan-out did not satisfy join policy %s: %d/%d succeeded: %w",
			e.cfg.Join, succeeded, len(workers), errors.Join(failures...))
	}

	ordered := make([]store.WorkerOutput, 0, succeeded)
	for _, o := range outputs {
		if o != nil {
			ordered = append(ordered, *o)
		}
	}
	return ordered, nil
}

// invokeWorker records the execution, routes to the worker's gateway, calls
// it under the configured timeout, and persists the outcome.
func (e *Engine) invokeWorker(ctx context.Context, workflowID string, w gateway.Worker, prompt string) (string, error) {
	started := time.Now().UTC()
	exec := &store.Execution{
		WorkflowID: workflowID,
		WorkerName: w.Name,
		WorkerKind: w.Kind,
		Input:      prompt,
		Status:     store.ExecutionRunning,
		StartedAt:  started,
	}
	if err := e.store.CreateExecution(ctx, exec); err != nil {
		return "", &PersistenceError{Op: "execution create", Err: err}
	}

	e.emitter.Emit(emit.Event{
		Type:       emit.TypeWorkerStarted,
		WorkflowID: workflowID,
		Timestamp:  started,
		Meta:       map[string]interface{}{"worker": w.Name, "kind": w.Kind},
	})

	var (
		output  string
		callErr error
	)
	gtw, callErr := e.router.Route(w.Name)
	if callErr == nil {
		var res *gateway.Result
		res, callErr = gateway.InvokeWithTimeout(ctx, gtw, gateway.Request{Prompt: prompt}, e.cfg.WorkerTimeout)
		if callErr == nil {
			output = res.Output
		}
	}

	elapsed := time.Since(started)
	e.metrics.workerCall(w.Kind, elapsed, callErr)

	// Record the outcome even when ctx was cancelled mid-call.
	recCtx := context.WithoutCancel(ctx)
	finished := time.Now().UTC()
	if callErr != nil {
		_ = e.store.FinishExecution(recCtx, exec.ID, store.ExecutionFailed, callErr.Error(), finished)
	} else {
		if err := e.store.FinishExecution(recCtx, exec.ID, store.ExecutionCompleted, output, finished); err != nil {
			return "", &PersistenceError{Op: "execution finish", Err: err}
		}
		_ = e.store.AppendMessage(recCtx, &store.Message{
			WorkflowID: workflowID,
			Role:       "assistant",
			Content:    output,
			WorkerName: w.Name,
			CreatedAt:  finished,
		})
	}

	meta := map[string]interface{}{
		"worker":      w.Name,
		"kind":        w.Kind,
		"duration_ms": elapsed.Milliseconds(),
	}
	if callErr != nil {
		meta["error"] = callErr.Error()
	}
	e.emitter.Emit(emit.Event{
		Type:       emit.TypeWorkerFinished,
		WorkflowID: workflowID,
		Timestamp:  finished,
		Meta:       meta,
	})

	if callErr != nil {
		return "", fmt.Errorf("worker %s failed: %w", w.Name, callErr)
	}
	return output, nil
}

// suspendPlanReview parks the workflow at the plan review checkpoint.
func (e *Engine) suspendPlanReview(ctx context.Context, workflowID string, state *RunState) (*store.Checkpoint, error) {
	cont, err := encodeContinuation(workflowID, NodeAwaitPlanReview, state)
	if err != nil {
		return nil, e.fail(ctx, workflowID, err)
	}
	cp, err := e.coord.Suspend(ctx, workflowID, cont, CheckpointSpec{
		StepName:        StepPlanReadyForReview,
		EditableContent: state.Plan,
		Instructions:    planReviewInstructions,
		Actions: store.ActionSet{
			Primary:   ActionSendToReviewers,
			Secondary: []string{ActionEditAndContinue, ActionCancel},
		},
		WorkerOutputs: []store.WorkerOutput{{
			WorkerName: e.cfg.Planner.Name,
			WorkerKind: e.cfg.Planner.Kind,
			Output:     state.Plan,
			Timestamp:  time.Now().UTC(),
		}},
		Iteration: state.Iteration,
	})
	if err != nil {
		return nil, e.fail(ctx, workflowID, err)
	}
	return cp, nil
}

// suspendConsolidation parks the workflow at the review consolidation
// checkpoint. Once the iteration cap is reached the revision actions are
// withheld so the run can only be approved or cancelled.
func (e *Engine) suspendConsolidation(ctx context.Context, workflowID string, state *RunState) (*store.Checkpoint, error) {
	cont, err := encodeContinuation(workflowID, NodeAwaitConsolidation, state)
	if err != nil {
		return nil, e.fail(ctx, workflowID, err)
	}

	actions := store.ActionSet{
		Primary:   ActionRequestRevision,
		Secondary: []string{ActionEditPromptAndRevise, ActionApprove, ActionCancel},
	}
	if e.cfg.MaxIterations > 0 && state.Iteration+1 >= e.cfg.MaxIterations {
		actions = store.ActionSet{
			Primary:   ActionApprove,
			Secondary: []string{ActionCancel},
		}
	}

	cp, err := e.coord.Suspend(ctx, workflowID, cont, CheckpointSpec{
		StepName:        StepReviewsReadyForConsolidation,
		EditableContent: ConsolidateReviews(state.Reviews),
		Instructions:    consolidationInstructions,
		Actions:         actions,
		WorkerOutputs:   state.Reviews,
		Iteration:       state.Iteration,
	})
	if err != nil {
		return nil, e.fail(ctx, workflowID, err)
	}
	return cp, nil
}

// suspendReviewerPrompt parks the workflow at the reviewer prompt edit
// checkpoint with the fully rendered default prompt as editable content.
func (e *Engine) suspendReviewerPrompt(ctx context.Context, workflowID string, state *RunState, prompt string) (*store.Checkpoint, error) {
	cont, err := encodeContinuation(workflowID, NodeAwaitReviewerPrompt, state)
	if err != nil {
		return nil, e.fail(ctx, workflowID, err)
	}
	cp, err := e.coord.Suspend(ctx, workflowID, cont, CheckpointSpec{
		StepName:        StepEditReviewerPrompt,
		EditableContent: prompt,
		Instructions:    editReviewerPromptInstructions,
		Actions: store.ActionSet{
			Primary:   ActionSendToReviewers,
			Secondary: []string{ActionCancel},
		},
		Iteration: state.Iteration,
	})
	if err != nil {
		return nil, e.fail(ctx, workflowID, err)
	}
	return cp, nil
}

// suspendPlannerPrompt parks the workflow at the planner prompt edit
// checkpoint.
func (e *Engine) suspendPlannerPrompt(ctx context.Context, workflowID string, state *RunState, prompt string) (*store.Checkpoint, error) {
	cont, err := encodeContinuation(workflowID, NodeAwaitPlannerPrompt, state)
	if err != nil {
		return nil, e.fail(ctx, workflowID, err)
	}
	cp, err := e.coord.Suspend(ctx, workflowID, cont, CheckpointSpec{
		StepName:        StepEditPlannerPrompt,
		EditableContent: prompt,
		Instructions:    editPlannerPromptInstructions,
		Actions: store.ActionSet{
			Primary:   ActionSendToPlannerForRevision,
			Secondary: []string{ActionCancel},
		},
		Iteration: state.Iteration,
	})
	if err != nil {
		return nil, e.fail(ctx, workflowID, err)
	}
	return cp, nil
}

func (e *Engine) resumeRunning(ctx context.Context, workflowID string) error {
	return e.sync.Apply(ctx, workflowID, store.StatusRunning, store.WorkflowUpdate{})
}

// complete moves the workflow to COMPLETED with the final plan as result.
func (e *Engine) complete(ctx context.Context, workflowID string, state *RunState) error {
	result, err := json.Marshal(struct {
		FinalPlan  string `json:"final_plan"`
		Iterations int    `json:"iterations"`
	}{
		FinalPlan:  state.CurrentPlan(),
		Iterations: state.Iteration,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return e.sync.Apply(ctx, workflowID, store.StatusCompleted, store.WorkflowUpdate{
		Result: json.RawMessage(result),
	})
}

func (e *Engine) finishCancelled(ctx context.Context, workflowID string) error {
	return e.sync.Apply(ctx, workflowID, store.StatusCancelled, store.WorkflowUpdate{})
}

// fail moves the workflow to FAILED with the error persisted as result.
// If the workflow is already terminal (a racing Cancel won), the original
// error is returned without a second transition.
func (e *Engine) fail(ctx context.Context, workflowID string, cause error) error {
	// Persist even when the segment's context was cancelled.
	ctx = context.WithoutCancel(ctx)

	status, err := e.sync.Current(ctx, workflowID)
	if err == nil && status.Terminal() {
		return cause
	}

	detail, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: cause.Error()})
	if applyErr := e.sync.Apply(ctx, workflowID, store.StatusFailed, store.WorkflowUpdate{
		Result: json.RawMessage(detail),
	}); applyErr != nil {
		return errors.Join(cause, applyErr)
	}
	return cause
}

// Cancel terminates a RUNNING or AWAITING_CHECKPOINT workflow.
//
// An in-flight execution segment's workers are cancelled best-effort; their
// late results are discarded. A pending checkpoint is resolved as rejected
// through the coordinator so no pending checkpoint outlives its workflow.
func (e *Engine) Cancel(ctx context.Context, workflowID string) error {
	status, err := e.sync.Current(ctx, workflowID)
	if err != nil {
		return err
	}
	if !CanTransition(status, store.StatusCancelled) {
		return &InvalidTransitionError{WorkflowID: workflowID, From: status, To: store.StatusCancelled}
	}

	if cp, err := e.coord.Pending(ctx, workflowID); err == nil {
		// A racing human resolution loses to the cancel either way.
		_, _ = e.coord.Resolve(ctx, cp.ID, Resolution{
			Action:     ActionCancel,
			ResolvedBy: "system",
		})
	}

	if err := e.sync.Apply(ctx, workflowID, store.StatusCancelled, store.WorkflowUpdate{}); err != nil {
		return err
	}

	// Propagate after the terminal transition; workflow teardown does not
	// wait on worker teardown.
	e.mu.Lock()
	cancel := e.cancels[workflowID]
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Recover reconciles persisted statuses after a restart.
//
// For every PENDING or RUNNING workflow:
//   - a pending checkpoint plus continuation means the crash happened after
//     the durable suspension writes but before the status transition; the
//     status is rolled forward to AWAITING_CHECKPOINT.
//   - a RUNNING workflow without a pending checkpoint lost its in-memory
//     execution segment; it is failed with a persisted explanation.
//   - a PENDING workflow without a checkpoint never started and is left
//     untouched.
//
// An AWAITING_CHECKPOINT workflow whose latest checkpoint is already
// resolved was caught between resolution and resume; its resume is
// re-driven from the persisted action. One still parked at a pending
// checkpoint is left untouched.
//
// Returns the number of workflows whose status was corrected.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	workflows, err := e.store.ListWorkflowsByStatus(ctx,
		store.StatusPending, store.StatusRunning, store.StatusAwaitingCheckpoint)
	if err != nil {
		return 0, &PersistenceError{Op: "recovery scan", Err: err}
	}

	corrected := 0
	for _, wf := range workflows {
		if wf.Status == store.StatusAwaitingCheckpoint {
			if e.redriveResolved(ctx, wf.ID) {
				corrected++
			}
			continue
		}

		cp, cpErr := e.store.PendingCheckpoint(ctx, wf.ID)
		hasCheckpoint := cpErr == nil
		if hasCheckpoint {
			if _, contErr := e.store.LoadContinuation(ctx, wf.ID); contErr != nil {
				hasCheckpoint = false
			}
		}

		switch {
		case hasCheckpoint:
			if err := e.sync.Apply(ctx, wf.ID, store.StatusAwaitingCheckpoint, store.WorkflowUpdate{}); err != nil {
				return corrected, err
			}
			e.emitter.Emit(emit.Event{
				Type:       emit.TypeCheckpointReady,
				WorkflowID: wf.ID,
				Msg:        "recovered pending checkpoint",
				Timestamp:  time.Now().UTC(),
				Meta: map[string]interface{}{
					"checkpoint_id":     cp.ID,
					"checkpoint_number": cp.Number,
					"step_name":         cp.StepName,
				},
			})
			corrected++

		case wf.Status == store.StatusRunning:
			_ = e.fail(ctx, wf.ID, errors.New("execution interrupted by restart"))
			corrected++
		}
	}
	return corrected, nil
}

// redriveResolved resumes a suspended workflow whose checkpoint was
// resolved but whose execution segment never ran. Reports whether the
// resume completed.
func (e *Engine) redriveResolved(ctx context.Context, workflowID string) bool {
	if _, err := e.store.PendingCheckpoint(ctx, workflowID); err == nil {
		return false
	}
	cps, err := e.store.ListCheckpoints(ctx, workflowID)
	if err != nil || len(cps) == 0 {
		return false
	}
	last := cps[len(cps)-1]
	if last.Resolution == store.CheckpointPending {
		return false
	}
	_, err = e.Resume(ctx, workflowID, last)
	return err == nil
}

// SweepExpired cancels workflows whose pending checkpoint has waited longer
// than the configured TTL. A zero TTL disables the sweep.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	if e.cfg.CheckpointTTL <= 0 {
		return 0, nil
	}
	workflows, err := e.store.ListWorkflowsByStatus(ctx, store.StatusAwaitingCheckpoint)
	if err != nil {
		return 0, &PersistenceError{Op: "expiry scan", Err: err}
	}

	cutoff := time.Now().UTC().Add(-e.cfg.CheckpointTTL)
	swept := 0
	for _, wf := range workflows {
		cp, err := e.store.PendingCheckpoint(ctx, wf.ID)
		if err != nil || !cp.CreatedAt.Before(cutoff) {
			continue
		}
		if err := e.Cancel(ctx, wf.ID); err != nil {
			continue
		}
		swept++
	}
	return swept, nil
}

// resolvedAction returns the action recorded on a resolved checkpoint.
// Rejected checkpoints from before action recording existed map to cancel.
func resolvedAction(cp *store.Checkpoint) string {
	if cp.Action != "" {
		return cp.Action
	}
	if cp.Resolution == store.CheckpointRejected {
		return ActionCancel
	}
	return ""
}
