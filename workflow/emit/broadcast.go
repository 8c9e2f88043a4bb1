package emit

import (
	"sync"
	"sync/atomic"
)

// DefaultSubscriberBuffer is the per-subscription channel capacity used when
// NewBroadcaster is given a non-positive buffer size.
const DefaultSubscriberBuffer = 64

// Broadcaster implements Emitter by fanning events out to live subscribers.
//
// Each subscription gets its own buffered channel. Delivery is best effort:
// if a subscriber's buffer is full the event is dropped for that subscriber
// and the send never blocks the engine. A UI that misses events recovers by
// re-reading workflow state from the store, which remains the source of
// truth.
//
// Usage:
//
//	b := emit.NewBroadcaster(0)
//	sub := b.Subscribe()
//	defer b.Unsubscribe(sub)
//	for ev := range sub.Events() {
//	    // push to websocket, SSE stream, etc.
//	}
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool

	// dropped counts events discarded because a subscriber's buffer was
	// full. Exposed for monitoring via Dropped.
	dropped atomic.Int64
}

// Subscription is one subscriber's view of the event stream.
type Subscription struct {
	ch chan Event

	// workflowID, when non-empty, restricts delivery to one workflow.
	workflowID string
}

// Events returns the channel events are delivered on. The channel is closed
// when the subscription is removed or the broadcaster shuts down.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// NewBroadcaster creates a Broadcaster. buffer is the per-subscription
// channel capacity; values <= 0 use DefaultSubscriberBuffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for all workflow events.
func (b *Broadcaster) Subscribe() *Subscription {
	return b.subscribe("")
}

// SubscribeWorkflow registers a subscriber that only receives events for the
// given workflow.
func (b *Broadcaster) SubscribeWorkflow(workflowID string) *Subscription {
	return b.subscribe(workflowID)
}

func (b *Broadcaster) subscribe(workflowID string) *Subscription {
	sub := &Subscription{
		ch:         make(chan Event, b.buffer),
		workflowID: workflowID,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to call
// more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Emit delivers the event to every matching subscriber without blocking.
func (b *Broadcaster) Emit(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		if sub.workflowID != "" && sub.workflowID != event.WorkflowID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns the number of events discarded due to full subscriber
// buffers since the broadcaster was created.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// Close shuts the broadcaster down, closing every subscriber channel.
// Subsequent Emit calls are no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}
