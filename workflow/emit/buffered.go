package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory.
//
// Events are organized by workflow ID for efficient retrieval. Primarily
// used in tests and debugging sessions to assert on the notification stream
// after a run.
//
// Warning: all events are held in memory. For long-lived processes clear
// finished workflows with Clear.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // workflowID -> events
}

// HistoryFilter selects a subset of a workflow's events. Empty fields match
// everything; set fields combine with AND logic.
type HistoryFilter struct {
	Type string // filter by event type (empty = no filter)
	Msg  string // filter by message (empty = no filter)
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores the event. Thread-safe.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.WorkflowID] = append(b.events[event.WorkflowID], event)
}

// History returns all events for a workflow in emission order. Returns a
// copy so callers cannot mutate the buffer.
func (b *BufferedEmitter) History(workflowID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[workflowID]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// HistoryWithFilter returns the workflow's events matching the filter, in
// emission order.
func (b *BufferedEmitter) HistoryWithFilter(workflowID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, ev := range b.events[workflowID] {
		if filter.Type != "" && ev.Type != filter.Type {
			continue
		}
		if filter.Msg != "" && ev.Msg != filter.Msg {
			continue
		}
		result = append(result, ev)
	}
	return result
}

// Clear removes all stored events for a workflow.
func (b *BufferedEmitter) Clear(workflowID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, workflowID)
}

// ClearAll removes all stored events.
func (b *BufferedEmitter) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = make(map[string][]Event)
}
