package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var errClosed = errors.New("store is closed")

// MemStore is an in-memory implementation of Store.
//
// All entities are held in maps guarded by a single mutex and copied on the
// way in and out, so callers can never mutate stored state through retained
// pointers. Data is lost when the process exits; use SQLiteStore or
// MySQLStore for durability.
type MemStore struct {
	mu            sync.RWMutex
	workflows     map[string]*Workflow
	checkpoints   map[string]*Checkpoint
	executions    map[string][]*Execution
	messages      map[string][]*Message
	continuations map[string]*Continuation
	nextExecID    int64
	nextMsgID     int64
	closed        bool

	// FailNext, when non-nil, is returned by the next mutating call and
	// then cleared. Tests use it to inject persistence failures at exact
	// points in the engine's write sequence.
	FailNext error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		workflows:     make(map[string]*Workflow),
		checkpoints:   make(map[string]*Checkpoint),
		executions:    make(map[string][]*Execution),
		messages:      make(map[string][]*Message),
		continuations: make(map[string]*Continuation),
	}
}

// BackdateCheckpoint rewrites a checkpoint's creation time. Tests use it to
// exercise TTL expiry without waiting.
func (s *MemStore) BackdateCheckpoint(id string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp, ok := s.checkpoints[id]; ok {
		cp.CreatedAt = createdAt
	}
}

func (s *MemStore) takeFailure() error {
	if s.FailNext != nil {
		err := s.FailNext
		s.FailNext = nil
		return err
	}
	return nil
}

func (s *MemStore) CreateWorkflow(_ context.Context, wf *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if err := s.takeFailure(); err != nil {
		return err
	}
	cp := *wf
	s.workflows[wf.ID] = &cp
	return nil
}

func (s *MemStore) GetWorkflow(_ context.Context, id string) (*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *wf
	return &cp, nil
}

func (s *MemStore) UpdateWorkflowStatus(_ context.Context, id string, status Status, upd WorkflowUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if err := s.takeFailure(); err != nil {
		return err
	}
	wf, ok := s.workflows[id]
	if !ok {
		return ErrNotFound
	}
	wf.Status = status
	wf.UpdatedAt = time.Now().UTC()
	if upd.CompletedAt != nil {
		t := *upd.CompletedAt
		wf.CompletedAt = &t
	}
	if upd.Result != nil {
		wf.Result = append([]byte(nil), upd.Result...)
	}
	return nil
}

func (s *MemStore) ListWorkflowsByStatus(_ context.Context, statuses ...Status) ([]*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	want := make(map[Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []*Workflow
	for _, wf := range s.workflows {
		if len(statuses) == 0 || want[wf.Status] {
			cp := *wf
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if _, ok := s.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(s.workflows, id)
	for cpID, cp := range s.checkpoints {
		if cp.WorkflowID == id {
			delete(s.checkpoints, cpID)
		}
	}
	delete(s.executions, id)
	delete(s.messages, id)
	delete(s.continuations, id)
	return nil
}

func (s *MemStore) CreateCheckpoint(_ context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if err := s.takeFailure(); err != nil {
		return err
	}
	max := 0
	for _, existing := range s.checkpoints {
		if existing.WorkflowID != cp.WorkflowID {
			continue
		}
		if existing.Resolution == CheckpointPending {
			return ErrPendingCheckpointExists
		}
		if existing.Number > max {
			max = existing.Number
		}
	}
	cp.Number = max + 1
	cp.Resolution = CheckpointPending
	stored := copyCheckpoint(cp)
	s.checkpoints[cp.ID] = stored
	return nil
}

func (s *MemStore) GetCheckpoint(_ context.Context, id string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCheckpoint(cp), nil
}

func (s *MemStore) PendingCheckpoint(_ context.Context, workflowID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	for _, cp := range s.checkpoints {
		if cp.WorkflowID == workflowID && cp.Resolution == CheckpointPending {
			return copyCheckpoint(cp), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ResolveCheckpoint(_ context.Context, id string, res CheckpointResolution) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	if cp.Resolution != CheckpointPending {
		return nil, ErrCheckpointResolved
	}
	cp.Resolution = res.Status
	cp.Action = res.Action
	cp.EditedContent = res.EditedContent
	cp.Notes = res.Notes
	cp.ResolvedBy = res.ResolvedBy
	t := res.ResolvedAt
	cp.ResolvedAt = &t
	return copyCheckpoint(cp), nil
}

func (s *MemStore) ListCheckpoints(_ context.Context, workflowID string) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	var out []*Checkpoint
	for _, cp := range s.checkpoints {
		if cp.WorkflowID == workflowID {
			out = append(out, copyCheckpoint(cp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *MemStore) CreateExecution(_ context.Context, ex *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.nextExecID++
	ex.ID = s.nextExecID
	cp := *ex
	s.executions[ex.WorkflowID] = append(s.executions[ex.WorkflowID], &cp)
	return nil
}

func (s *MemStore) FinishExecution(_ context.Context, id int64, status ExecutionStatus, output string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	for _, list := range s.executions {
		for _, ex := range list {
			if ex.ID == id {
				ex.Status = status
				ex.Output = output
				t := completedAt
				ex.CompletedAt = &t
				ex.ElapsedMS = completedAt.Sub(ex.StartedAt).Milliseconds()
				return nil
			}
		}
	}
	return ErrNotFound
}

func (s *MemStore) ListExecutions(_ context.Context, workflowID string) ([]*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	list := s.executions[workflowID]
	out := make([]*Execution, len(list))
	for i, ex := range list {
		cp := *ex
		out[i] = &cp
	}
	return out, nil
}

func (s *MemStore) AppendMessage(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.nextMsgID++
	msg.ID = s.nextMsgID
	cp := *msg
	s.messages[msg.WorkflowID] = append(s.messages[msg.WorkflowID], &cp)
	return nil
}

func (s *MemStore) ListMessages(_ context.Context, workflowID string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	list := s.messages[workflowID]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	out := make([]*Message, len(list))
	for i, msg := range list {
		cp := *msg
		out[i] = &cp
	}
	return out, nil
}

func (s *MemStore) SaveContinuation(_ context.Context, c *Continuation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if err := s.takeFailure(); err != nil {
		return err
	}
	cp := *c
	cp.State = append([]byte(nil), c.State...)
	s.continuations[c.WorkflowID] = &cp
	return nil
}

func (s *MemStore) LoadContinuation(_ context.Context, workflowID string) (*Continuation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	c, ok := s.continuations[workflowID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.State = append([]byte(nil), c.State...)
	return &cp, nil
}

// Close marks the store closed. Double-close is a no-op.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyCheckpoint(cp *Checkpoint) *Checkpoint {
	out := *cp
	out.WorkerOutputs = append([]WorkerOutput(nil), cp.WorkerOutputs...)
	out.Actions.Secondary = append([]string(nil), cp.Actions.Secondary...)
	if cp.ResolvedAt != nil {
		t := *cp.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}
