package workflow

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maestro-ai/maestro-go/workflow/emit"
	"github.com/maestro-ai/maestro-go/workflow/gateway"
	"github.com/maestro-ai/maestro-go/workflow/store"
)

// Service is the outward-facing API over the engine and coordinator. API
// servers and CLIs talk to a Service; the engine stays an internal detail.
type Service struct {
	store   store.Store
	engine  *Engine
	metrics *Metrics
}

// NewService wires a Service over the given store and gateway router.
func NewService(st store.Store, router *gateway.Router, opts ...ServiceOption) *Service {
	cfg := serviceConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		store:   st,
		engine:  NewEngine(st, router, cfg.emitter, cfg.metrics, cfg.engine),
		metrics: cfg.metrics,
	}
}

type serviceConfig struct {
	emitter emit.Emitter
	metrics *Metrics
	engine  Config
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceConfig)

// WithEmitter routes engine events to the given emitter.
func WithEmitter(e emit.Emitter) ServiceOption {
	return func(c *serviceConfig) { c.emitter = e }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) ServiceOption {
	return func(c *serviceConfig) { c.metrics = m }
}

// WithEngineConfig sets the engine tunables.
func WithEngineConfig(cfg Config) ServiceOption {
	return func(c *serviceConfig) { c.engine = cfg }
}

// Engine exposes the underlying engine, mainly for recovery and sweeps.
func (s *Service) Engine() *Engine { return s.engine }

// CreateRequest describes a new plan review workflow.
type CreateRequest struct {
	// Name labels the workflow for humans. Defaults to a prompt prefix.
	Name string

	// Prompt is the user's requirements for the planner. Required.
	Prompt string

	// WorkspacePath optionally scopes the workflow to a directory.
	WorkspacePath string
}

// Create persists a new workflow in PENDING and runs it through planning to
// its first checkpoint. Returns the workflow and the plan review checkpoint.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.Workflow, *store.Checkpoint, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, nil, &ValidationError{Field: "prompt", Message: "prompt is required"}
	}
	name := req.Name
	if name == "" {
		name = req.Prompt
		if len(name) > 64 {
			name = name[:64]
		}
	}

	metadata, err := json.Marshal(struct {
		Prompt string `json:"prompt"`
	}{Prompt: req.Prompt})
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	wf := &store.Workflow{
		ID:            newWorkflowID(),
		Name:          name,
		Type:          "plan_review",
		Status:        store.StatusPending,
		WorkspacePath: req.WorkspacePath,
		CreatedAt:     now,
		UpdatedAt:     now,
		Metadata:      metadata,
	}
	if err := s.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, nil, &PersistenceError{Op: "workflow create", Err: err}
	}
	s.metrics.workflowStarted()

	cp, err := s.engine.Start(ctx, wf.ID)
	if err != nil {
		return wf, nil, err
	}
	return wf, cp, nil
}

// Resolve applies a human decision to a pending checkpoint and resumes the
// workflow to its next checkpoint or terminal status. The returned
// checkpoint is nil when the workflow terminated.
func (s *Service) Resolve(ctx context.Context, checkpointID string, res Resolution) (*store.Checkpoint, error) {
	resolved, err := s.engine.Coordinator().Resolve(ctx, checkpointID, res)
	if err != nil {
		return nil, err
	}
	return s.engine.Resume(ctx, resolved.WorkflowID, resolved)
}

// Cancel terminates a workflow, resolving any pending checkpoint as
// rejected.
func (s *Service) Cancel(ctx context.Context, workflowID string) error {
	return s.engine.Cancel(ctx, workflowID)
}

// Recover reconciles persisted workflow statuses after a restart.
func (s *Service) Recover(ctx context.Context) (int, error) {
	return s.engine.Recover(ctx)
}

// ReviewSummary is the advisory classification of one reviewer's output.
type ReviewSummary struct {
	WorkerName string        `json:"worker_name"`
	Verdict    ReviewVerdict `json:"verdict"`
}

// StateSnapshot is a read-only view of a workflow's current state.
type StateSnapshot struct {
	Workflow   *store.Workflow   `json:"workflow"`
	Checkpoint *store.Checkpoint `json:"checkpoint,omitempty"`
	Node       string            `json:"node,omitempty"`
	Iteration  int               `json:"iteration"`
	Plan       string            `json:"plan,omitempty"`
	Reviews    []ReviewSummary   `json:"reviews,omitempty"`
}

// State returns a snapshot of the workflow: its record, the pending
// checkpoint if any, the continuation node, the current plan, and advisory
// per-reviewer verdicts.
func (s *Service) State(ctx context.Context, workflowID string) (*StateSnapshot, error) {
	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	snap := &StateSnapshot{Workflow: wf}

	if cp, err := s.store.PendingCheckpoint(ctx, workflowID); err == nil {
		snap.Checkpoint = cp
		snap.Iteration = cp.Iteration
	}

	cont, err := s.store.LoadContinuation(ctx, workflowID)
	if err != nil {
		return snap, nil
	}
	state, err := decodeContinuation(cont)
	if err != nil {
		return nil, err
	}
	snap.Node = cont.Node
	snap.Iteration = state.Iteration
	snap.Plan = state.CurrentPlan()
	for _, r := range state.Reviews {
		snap.Reviews = append(snap.Reviews, ReviewSummary{
			WorkerName: r.WorkerName,
			Verdict:    ClassifyReview(r.Output),
		})
	}
	return snap, nil
}

// History is a workflow's full audit trail.
type History struct {
	Workflow    *store.Workflow     `json:"workflow"`
	Checkpoints []*store.Checkpoint `json:"checkpoints"`
	Executions  []*store.Execution  `json:"executions"`
	Messages    []*store.Message    `json:"messages"`
}

// History returns the workflow's checkpoints, executions, and messages in
// chronological order.
func (s *Service) History(ctx context.Context, workflowID string) (*History, error) {
	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	checkpoints, err := s.store.ListCheckpoints(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	executions, err := s.store.ListExecutions(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, workflowID, 0)
	if err != nil {
		return nil, err
	}
	return &History{
		Workflow:    wf,
		Checkpoints: checkpoints,
		Executions:  executions,
		Messages:    messages,
	}, nil
}

// List returns workflows in the given statuses; no statuses means all.
func (s *Service) List(ctx context.Context, statuses ...store.Status) ([]*store.Workflow, error) {
	return s.store.ListWorkflowsByStatus(ctx, statuses...)
}

// Pending returns the workflow's pending checkpoint.
func (s *Service) Pending(ctx context.Context, workflowID string) (*store.Checkpoint, error) {
	return s.engine.Coordinator().Pending(ctx, workflowID)
}

// Delete removes a terminal workflow and its dependent records.
func (s *Service) Delete(ctx context.Context, workflowID string) error {
	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if !wf.Status.Terminal() {
		return &ValidationError{
			Field:   "status",
			Message: "workflow " + workflowID + " is not terminal",
		}
	}
	if err := s.store.DeleteWorkflow(ctx, workflowID); err != nil {
		return err
	}
	s.engine.sync.Forget(workflowID)
	return nil
}

func newWorkflowID() string {
	return "wf-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
