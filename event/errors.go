package event

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Sentinel errors for the event package.
var (
	// ErrPumpClosed is returned when enqueuing after the Closed event has
	// been enqueued. No event may follow Closed.
	ErrPumpClosed = errors.New("event pump is closed")

	// ErrPumpClosing is returned when subscribing after shutdown has begun.
	// No new subscriptions are accepted once Closing has been enqueued.
	ErrPumpClosing = errors.New("event pump is closing")

	// ErrReservedEvent is returned when enqueuing a control event that only
	// the pump itself may produce (Closing, Closed).
	ErrReservedEvent = errors.New("event type is reserved for the pump")

	// ErrNilEvent is returned when a nil event is enqueued.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrWorkerAlreadyStarted is returned when Start is called on a running
	// worker.
	ErrWorkerAlreadyStarted = errors.New("worker is already started")
)

// AggregateError collects the failures of two or more handlers that ran for
// the same event. Inner errors appear in handler-registration order and are
// stamped with the event's enqueue provenance.
type AggregateError struct {
	src Source
	err error
}

// newAggregateError combines errs (len >= 2) in order.
func newAggregateError(src Source, errs []error) *AggregateError {
	return &AggregateError{src: src, err: multierr.Combine(errs...)}
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	return fmt.Sprintf("%d handlers failed for event enqueued at %s: %v",
		len(e.Errors()), e.src, e.err)
}

// Errors returns the individual handler failures in registration order.
func (e *AggregateError) Errors() []error {
	return multierr.Errors(e.err)
}

// Source returns the enqueue provenance of the event whose dispatch failed.
func (e *AggregateError) Source() Source {
	return e.src
}

// Unwrap returns the combined error for errors.Is/As traversal.
func (e *AggregateError) Unwrap() error {
	return e.err
}
