package event

import (
	"context"
	"reflect"
)

// Handler processes events of a declared type. Declaring an interface type
// (including Event itself) subscribes to every event assignable to it.
type Handler[T Event] interface {
	// HandleEvent processes one event. A returned error propagates to
	// whoever is waiting on the dispatch, or becomes an UnhandledError
	// event if nobody is.
	HandleEvent(ctx context.Context, evt T) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc[T Event] func(ctx context.Context, evt T) error

// HandleEvent implements the Handler interface.
func (f HandlerFunc[T]) HandleEvent(ctx context.Context, evt T) error {
	return f(ctx, evt)
}

// Queue is the surface shared by *Pump and *Worker. Code written against
// Queue cannot tell whether dispatch happens inline (a manually pumped
// Pump) or on a dedicated goroutine (a Worker).
type Queue interface {
	// Enqueue appends an event to the FIFO tail and returns immediately.
	Enqueue(evt Event) error

	// EnqueueAndWait enqueues and blocks until the event has been fully
	// dispatched, re-raising any handler error to the caller.
	EnqueueAndWait(ctx context.Context, evt Event) error

	// EnqueueAndWaitAsync enqueues and returns a channel that resolves
	// with the dispatch outcome, without blocking the caller.
	EnqueueAndWaitAsync(evt Event) <-chan error

	// RequestClose enqueues a CloseRequest, or silently does nothing once
	// shutdown has begun.
	RequestClose()

	// BeginClose starts the shutdown sequence. Duplicate calls are
	// silently absorbed.
	BeginClose()

	// HasEvents reports whether the FIFO is non-empty.
	HasEvents() bool

	// IsClosed reports whether the pump has reached its terminal state.
	IsClosed() bool

	// WaitForClosed blocks until the pump reaches its terminal state.
	WaitForClosed(ctx context.Context) error

	subscribe(declared reflect.Type, handler any, invoke invokeFunc) (*Subscription, error)
	unsubscribe(declared reflect.Type, handler any) bool
}

// Subscribe registers h for events assignable to T. Re-subscribing the same
// handler for the same type is a no-op and returns the existing
// subscription. Subscribe fails with ErrPumpClosing once shutdown has begun.
func Subscribe[T Event](q Queue, h Handler[T]) (*Subscription, error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	declared := reflect.TypeOf((*T)(nil)).Elem()
	invoke := func(ctx context.Context, evt Event) error {
		t, ok := evt.(T)
		if !ok {
			// The registry only routes assignable events here; a miss
			// means the declared type changed underneath us, so skip.
			return nil
		}
		return h.HandleEvent(ctx, t)
	}

	return q.subscribe(declared, h, invoke)
}

// SubscribeFunc registers a function handler for events assignable to T.
func SubscribeFunc[T Event](q Queue, fn HandlerFunc[T]) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return Subscribe[T](q, fn)
}

// Unsubscribe removes the subscription of h for type T, returning whether
// one was found. Handlers subscribed for several types need one call per
// type.
func Unsubscribe[T Event](q Queue, h Handler[T]) bool {
	if h == nil {
		return false
	}
	return q.unsubscribe(reflect.TypeOf((*T)(nil)).Elem(), h)
}
