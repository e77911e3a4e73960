package event

import (
	"time"

	"github.com/google/uuid"
)

// pendingEvent pairs an enqueued event with its optional completion signal.
// Exactly one pendingEvent exists per enqueue call; it is resolved once the
// event's handlers have run.
type pendingEvent struct {
	// id correlates log lines about this enqueue.
	id string

	event Event

	// done carries the dispatch outcome to a waiting caller. It is nil for
	// fire-and-forget enqueues and buffered so the dispatcher never blocks
	// on a waiter.
	done chan error

	enqueuedAt time.Time
}

func newPendingEvent(evt Event, wait bool, now time.Time) *pendingEvent {
	pe := &pendingEvent{
		id:         uuid.NewString(),
		event:      evt,
		enqueuedAt: now,
	}
	if wait {
		pe.done = make(chan error, 1)
	}
	return pe
}

// resolve delivers the dispatch outcome to the waiter, if there is one.
// Returns whether anyone was listening.
func (pe *pendingEvent) resolve(err error) bool {
	if pe.done == nil {
		return false
	}
	pe.done <- err
	return true
}
