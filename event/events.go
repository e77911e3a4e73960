package event

// Built-in control events. These drive the pump's shutdown protocol and are
// the only event types with queue-internal semantics; Closing and Closed may
// only be produced by the pump itself.

// CloseRequest asks subscribers whether the application may begin shutting
// down. Any handler may veto by setting CanBeginClose to false while the
// event is being handled; once all handlers have run, the pump begins the
// close sequence only if the flag is still true.
type CloseRequest struct {
	BaseEvent

	// CanBeginClose is the veto flag. It defaults to true; handlers clear
	// it to keep the pump open. Dispatch is exclusive, so handlers may
	// write the flag without additional locking.
	CanBeginClose bool
}

// NewCloseRequest creates a close request with the veto flag set to true.
func NewCloseRequest() *CloseRequest {
	return &CloseRequest{CanBeginClose: true}
}

// Closing signals that shutdown has begun: subscribers should stop producing
// events and release resources. It is always followed by exactly one Closed
// event.
type Closing struct {
	BaseEvent
}

// Closed is the terminal event. It is always the last event a pump
// dispatches; no event can follow it.
type Closed struct {
	BaseEvent
}

// UnhandledError wraps a handler failure that nobody was waiting on.
// The pump re-enqueues such failures as UnhandledError events so that every
// failure is observable somewhere; subscribe LogUnhandled (or a handler of
// your own) to record them.
type UnhandledError struct {
	BaseEvent

	// Err is the error (or aggregate of errors) the handlers produced.
	Err error

	// Origin is the enqueue call site of the event whose dispatch failed.
	Origin Source
}
