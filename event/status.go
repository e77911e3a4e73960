package event

// Status is the pump lifecycle state. It only ever moves forward, and each
// forward transition is triggered by the enqueue of the corresponding
// control event, not by its dispatch.
type Status int32

const (
	// StatusOpen accepts events and subscriptions.
	StatusOpen Status = iota

	// StatusClosingEnqueued means a Closing event is queued: no new
	// subscriptions, no further close requests.
	StatusClosingEnqueued

	// StatusClosedEnqueued means the terminal Closed event is queued: no
	// event may be enqueued behind it.
	StatusClosedEnqueued

	// StatusClosed is terminal: the Closed event has been dispatched, the
	// registry is cleared and WaitForClosed is released.
	StatusClosed
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosingEnqueued:
		return "closing-enqueued"
	case StatusClosedEnqueued:
		return "closed-enqueued"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}
