package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/maestro-ai/maestro-go/workflow/emit"
	"github.com/maestro-ai/maestro-go/workflow/store"
)

// StatusSync owns every workflow status transition.
//
// It validates changes against the transition table, writes the store before
// anything else observes the new status, then updates its in-memory cache
// and emits a status_update event. The cache is a projection for cheap
// reads: it is rebuilt lazily from the store on miss and is never consulted
// as the source of truth when it disagrees with a fresh store read. Entries
// for terminal workflows are evicted since no further transitions can occur.
type StatusSync struct {
	store   store.Store
	emitter emit.Emitter
	metrics *Metrics

	mu    sync.Mutex
	cache map[string]store.Status
}

// NewStatusSync creates a StatusSync. A nil emitter defaults to the null
// emitter; metrics may be nil.
func NewStatusSync(st store.Store, emitter emit.Emitter, metrics *Metrics) *StatusSync {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &StatusSync{
		store:   st,
		emitter: emitter,
		metrics: metrics,
		cache:   make(map[string]store.Status),
	}
}

// Current returns the workflow's status, from cache when present, otherwise
// from the store (repopulating the cache for non-terminal statuses).
func (s *StatusSync) Current(ctx context.Context, workflowID string) (store.Status, error) {
	s.mu.Lock()
	if status, ok := s.cache[workflowID]; ok {
		s.mu.Unlock()
		return status, nil
	}
	s.mu.Unlock()

	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return "", err
	}
	s.remember(workflowID, wf.Status)
	return wf.Status, nil
}

// Apply validates and persists the transition to the given status, then
// updates the cache and emits a status_update event.
//
// Order matters for crash consistency: the store write happens first, so a
// crash between store and cache leaves the cache stale, never ahead. The
// stale entry is corrected on the next Current miss or Apply.
func (s *StatusSync) Apply(ctx context.Context, workflowID string, to store.Status, upd store.WorkflowUpdate) error {
	from, err := s.Current(ctx, workflowID)
	if err != nil {
		return err
	}
	if !CanTransition(from, to) {
		return &InvalidTransitionError{WorkflowID: workflowID, From: from, To: to}
	}

	if to.Terminal() && upd.CompletedAt == nil {
		now := time.Now().UTC()
		upd.CompletedAt = &now
	}

	if err := s.store.UpdateWorkflowStatus(ctx, workflowID, to, upd); err != nil {
		return &PersistenceError{Op: "status update", Err: err}
	}

	s.remember(workflowID, to)
	s.metrics.transition(string(from), string(to))
	if to.Terminal() {
		s.metrics.workflowFinished()
	}

	s.emitter.Emit(emit.Event{
		Type:       emit.TypeStatusUpdate,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Meta: map[string]interface{}{
			"status":   string(to),
			"previous": string(from),
		},
	})
	s.emitTerminal(workflowID, to)
	return nil
}

// Forget drops the cache entry for a workflow. Used after administrative
// deletes.
func (s *StatusSync) Forget(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, workflowID)
}

func (s *StatusSync) remember(workflowID string, status store.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status.Terminal() {
		delete(s.cache, workflowID)
		return
	}
	s.cache[workflowID] = status
}

func (s *StatusSync) emitTerminal(workflowID string, status store.Status) {
	var typ string
	switch status {
	case store.StatusCompleted:
		typ = emit.TypeWorkflowCompleted
	case store.StatusFailed:
		typ = emit.TypeWorkflowFailed
	case store.StatusCancelled:
		typ = emit.TypeWorkflowCancelled
	default:
		return
	}
	s.emitter.Emit(emit.Event{
		Type:       typ,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
	})
}
