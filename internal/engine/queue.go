package engine

import (
	"sync"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/identity"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventPrincipalChanged carries a new identity state.
	EventPrincipalChanged EventType = iota + 1
	// EventModeRequested carries a user mode choice.
	EventModeRequested
	// EventReload asks for a fresh subscription of the current mode.
	EventReload
	// EventSnapshot carries a catalog delivery for one subscription.
	EventSnapshot
	// EventSubscriptionFailed carries a catalog error for one subscription.
	EventSubscriptionFailed
)

func (t EventType) String() string {
	switch t {
	case EventPrincipalChanged:
		return "principal_changed"
	case EventModeRequested:
		return "mode_requested"
	case EventReload:
		return "reload"
	case EventSnapshot:
		return "snapshot"
	case EventSubscriptionFailed:
		return "subscription_failed"
	default:
		return "unknown"
	}
}

// Event is one reconciler input.
type Event struct {
	Type      EventType
	Principal *identity.Principal
	Mode      ViewMode
	Token     int64
	Products  []catalog.Product
	Err       error
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so collaborator callbacks never block on a busy
// reconciler.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the product slice can be collected.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
