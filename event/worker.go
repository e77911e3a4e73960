package event

import (
	"context"
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"
)

// Worker turns a pump into an autonomous queue: it owns a Pump and a
// long-lived goroutine that waits for events, drains everything queued and
// repeats until the pump closes. Producers just enqueue; handlers are
// guaranteed to run off the producer's goroutine.
//
// Worker implements Queue by delegation, so code written against Queue works
// identically with a manually pumped Pump and a started Worker.
type Worker struct {
	pump    *Pump
	logger  *zap.Logger
	started atomic.Bool
	done    chan struct{}
}

// NewWorker creates a worker and the pump it owns. The worker does not
// dispatch until Start is called.
func NewWorker(opts ...Option) *Worker {
	pump := NewPump(opts...)
	return &Worker{
		pump:   pump,
		logger: pump.logger,
		done:   make(chan struct{}),
	}
}

// Start launches the dispatch goroutine. It returns ErrWorkerAlreadyStarted
// on a second call.
func (w *Worker) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrWorkerAlreadyStarted
	}
	go w.run()
	return nil
}

// run is the dispatch loop: wait for an event, dispatch everything currently
// queued, repeat, stopping only once the pump reports closed.
func (w *Worker) run() {
	defer close(w.done)

	ctx := context.Background()
	for {
		if w.pump.IsClosed() {
			w.logger.Debug("dispatch worker stopped")
			return
		}
		if err := w.pump.WaitForEvent(ctx); err != nil {
			return
		}
		w.pump.HandleAll(ctx)
	}
}

// Done returns a channel closed once the dispatch goroutine has exited,
// which happens after the terminal Closed event has been dispatched.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Enqueue appends an event to the owned pump, stamped with the caller's
// source location.
func (w *Worker) Enqueue(evt Event) error {
	_, err := w.pump.enqueueFrom(evt, false, callerSource(1))
	return err
}

// EnqueueAndWait enqueues and blocks until the worker has dispatched the
// event, re-raising any handler error. It must not be called from a handler:
// the dispatch goroutine would be waiting on itself.
func (w *Worker) EnqueueAndWait(ctx context.Context, evt Event) error {
	done, err := w.pump.enqueueFrom(evt, true, callerSource(1))
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueAndWaitAsync enqueues and returns a channel resolved with the
// dispatch outcome once the worker gets to the event.
func (w *Worker) EnqueueAndWaitAsync(evt Event) <-chan error {
	done, err := w.pump.enqueueFrom(evt, true, callerSource(1))
	if err != nil {
		ch := make(chan error, 1)
		ch <- err
		return ch
	}
	return done
}

// RequestClose asks subscribers for permission to shut down. See
// Pump.RequestClose.
func (w *Worker) RequestClose() {
	_, _ = w.pump.enqueueFrom(NewCloseRequest(), false, callerSource(1))
}

// BeginClose starts the shutdown sequence unconditionally. See
// Pump.BeginClose.
func (w *Worker) BeginClose() {
	w.pump.beginClose(callerSource(1))
}

// HasEvents reports whether the owned pump has queued events.
func (w *Worker) HasEvents() bool {
	return w.pump.HasEvents()
}

// IsClosed reports whether the owned pump has reached its terminal state.
func (w *Worker) IsClosed() bool {
	return w.pump.IsClosed()
}

// Status returns the owned pump's lifecycle state.
func (w *Worker) Status() Status {
	return w.pump.Status()
}

// WaitForClosed blocks until the owned pump reaches its terminal state.
func (w *Worker) WaitForClosed(ctx context.Context) error {
	return w.pump.WaitForClosed(ctx)
}

// Stats returns a snapshot of the owned pump's counters.
func (w *Worker) Stats() Stats {
	return w.pump.Stats()
}

// subscribe implements Queue by delegation.
func (w *Worker) subscribe(declared reflect.Type, handler any, invoke invokeFunc) (*Subscription, error) {
	return w.pump.subscribe(declared, handler, invoke)
}

// unsubscribe implements Queue by delegation.
func (w *Worker) unsubscribe(declared reflect.Type, handler any) bool {
	return w.pump.unsubscribe(declared, handler)
}
