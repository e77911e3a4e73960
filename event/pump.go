package event

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Pump is a thread-safe FIFO event queue with a cooperative multi-phase
// shutdown protocol. Any number of producers may enqueue concurrently; one
// consumer at a time drains it with HandleOne/HandleAll, either by hand or
// through a Worker.
//
// Lifecycle: StatusOpen → StatusClosingEnqueued → StatusClosedEnqueued →
// StatusClosed, driven by RequestClose/BeginClose and the dispatch of the
// built-in control events. See the package documentation for the full
// protocol.
//
// Handlers run on the pumping goroutine and must not call HandleOne,
// HandleAll or EnqueueAndWait on their own pump; with a single consumer
// those calls can never make progress.
type Pump struct {
	mu     sync.Mutex
	fifo   []*pendingEvent
	notify chan struct{}

	// dispatchMu serializes dequeue+invoke so concurrent pumping threads
	// cannot reorder dispatch or interleave handlers.
	dispatchMu sync.Mutex

	status    atomic.Int32
	closedCh  chan struct{}
	closeOnce sync.Once

	registry *Registry
	logger   *zap.Logger
	clock    clock.Clock
	stats    pumpStats
}

// NewPump creates an open, empty event pump.
func NewPump(opts ...Option) *Pump {
	p := &Pump{
		notify:   make(chan struct{}, 1),
		closedCh: make(chan struct{}),
		registry: NewRegistry(),
		logger:   zap.NewNop(),
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Status returns the current lifecycle state.
func (p *Pump) Status() Status {
	return Status(p.status.Load())
}

// HasEvents reports whether the FIFO is non-empty.
func (p *Pump) HasEvents() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fifo) > 0
}

// IsClosed reports whether the pump has reached its terminal state.
func (p *Pump) IsClosed() bool {
	return p.Status() == StatusClosed
}

// subscribe implements Queue. The status check and the registry insert share
// the queue lock so a subscription can never slip in behind BeginClose.
func (p *Pump) subscribe(declared reflect.Type, handler any, invoke invokeFunc) (*Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Status() >= StatusClosingEnqueued {
		return nil, ErrPumpClosing
	}
	return p.registry.Add(declared, handler, invoke), nil
}

// unsubscribe implements Queue.
func (p *Pump) unsubscribe(declared reflect.Type, handler any) bool {
	return p.registry.Remove(declared, handler)
}

// Enqueue appends an event to the FIFO tail, stamping it with the caller's
// source location, and returns immediately. Ordinary events are rejected
// with ErrPumpClosed once the terminal Closed event has been enqueued.
// Closing and Closed are reserved; a CloseRequest follows the RequestClose
// drop rule.
func (p *Pump) Enqueue(evt Event) error {
	_, err := p.enqueueFrom(evt, false, callerSource(1))
	return err
}

// EnqueueAndWait enqueues evt and blocks until its dispatch finishes,
// returning the handler error (or aggregate) on the caller's goroutine.
// Cancelling the context abandons the wait, not the dispatch.
func (p *Pump) EnqueueAndWait(ctx context.Context, evt Event) error {
	done, err := p.enqueueFrom(evt, true, callerSource(1))
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

// EnqueueAndWaitAsync enqueues evt and returns a single-use channel that
// resolves with the dispatch outcome, without blocking the caller. Enqueue
// failures resolve the channel immediately.
func (p *Pump) EnqueueAndWaitAsync(evt Event) <-chan error {
	done, err := p.enqueueFrom(evt, true, callerSource(1))
	if err != nil {
		ch := make(chan error, 1)
		ch <- err
		return ch
	}
	return done
}

// RequestClose enqueues a CloseRequest carrying the veto flag. Once shutdown
// has begun the request is silently dropped; shutdown cannot be re-requested
// mid-flight.
func (p *Pump) RequestClose() {
	_, _ = p.enqueueFrom(NewCloseRequest(), false, callerSource(1))
}

// BeginClose starts the shutdown sequence: queued close requests are purged
// as moot and a Closing event is enqueued. Exactly one call wins; duplicates
// are silently absorbed.
func (p *Pump) BeginClose() {
	p.beginClose(callerSource(1))
}

// enqueueFrom is the single enqueue path. It validates the event, applies
// the status rules under the queue lock and returns the completion channel
// when wait is set.
func (p *Pump) enqueueFrom(evt Event, wait bool, src Source) (<-chan error, error) {
	if evt == nil {
		return nil, ErrNilEvent
	}
	switch evt.(type) {
	case *Closing, *Closed:
		return nil, ErrReservedEvent
	}

	p.mu.Lock()
	st := p.Status()
	if _, isCloseRequest := evt.(*CloseRequest); isCloseRequest {
		if st >= StatusClosingEnqueued {
			p.stats.dropped.Add(1)
			p.mu.Unlock()
			if !wait {
				return nil, nil
			}
			// Dropped as moot; the waiter sees a clean completion.
			done := make(chan error, 1)
			done <- nil
			return done, nil
		}
	} else if st >= StatusClosedEnqueued {
		p.mu.Unlock()
		return nil, ErrPumpClosed
	}

	pe := p.appendLocked(evt, wait, src)
	p.mu.Unlock()

	return pe.done, nil
}

// appendLocked stamps evt, appends its wrapper to the FIFO tail and sets the
// availability signal on the empty→non-empty edge. Callers hold p.mu.
func (p *Pump) appendLocked(evt Event, wait bool, src Source) *pendingEvent {
	evt.stamp(src)
	pe := newPendingEvent(evt, wait, p.clock.Now())
	p.fifo = append(p.fifo, pe)

	p.stats.enqueued.Add(1)
	p.stats.observeDepth(len(p.fifo))

	if len(p.fifo) == 1 {
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}
	return pe
}

// dequeue removes and returns the head wrapper, clearing the availability
// signal when the FIFO empties. Returns nil if there is nothing queued.
func (p *Pump) dequeue() *pendingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.fifo) == 0 {
		return nil
	}
	pe := p.fifo[0]
	p.fifo[0] = nil
	p.fifo = p.fifo[1:]

	if len(p.fifo) == 0 {
		p.fifo = nil
		select {
		case <-p.notify:
		default:
		}
	}
	return pe
}

// beginClose performs the OPEN → CLOSING_ENQUEUED transition exactly once:
// already-queued close requests are purged (shutdown is happening, they are
// moot) and the Closing event is appended.
func (p *Pump) beginClose(src Source) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.status.CompareAndSwap(int32(StatusOpen), int32(StatusClosingEnqueued)) {
		return
	}

	kept := p.fifo[:0]
	for _, pe := range p.fifo {
		if _, ok := pe.event.(*CloseRequest); ok {
			pe.resolve(nil)
			p.stats.purged.Add(1)
			continue
		}
		kept = append(kept, pe)
	}
	for i := len(kept); i < len(p.fifo); i++ {
		p.fifo[i] = nil
	}
	p.fifo = kept

	p.appendLocked(&Closing{}, false, src)
	p.logger.Debug("close sequence started", zap.Stringer("requested_at", src))
}

// HandleOne dequeues the head event, invokes its handlers, applies the
// shutdown side effects and resolves the completion signal. It returns
// whether an event was handled; an empty FIFO is a no-op.
func (p *Pump) HandleOne(ctx context.Context) bool {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	pe := p.dequeue()
	if pe == nil {
		return false
	}

	start := p.clock.Now()
	res := p.registry.Invoke(ctx, pe.event)

	p.stats.dispatched.Add(1)
	p.stats.handlersInvoked.Add(uint64(res.Invoked))
	p.stats.handlerErrors.Add(uint64(res.Failed))
	p.stats.handlerPanics.Add(uint64(res.Panicked))
	p.stats.totalDispatchNs.Add(int64(p.clock.Since(start)))

	p.afterDispatch(pe.event)
	p.complete(pe, res.Err)
	return true
}

// HandleAll repeatedly calls HandleOne while entries remain, returning the
// number of events handled.
func (p *Pump) HandleAll(ctx context.Context) int {
	n := 0
	for p.HandleOne(ctx) {
		n++
	}
	return n
}

// afterDispatch applies the completion side effects of the built-in control
// events. These run after the event's handlers, not at enqueue time.
func (p *Pump) afterDispatch(evt Event) {
	switch ev := evt.(type) {
	case *CloseRequest:
		if ev.CanBeginClose {
			p.beginClose(ev.Source())
		} else {
			p.logger.Debug("close request vetoed",
				zap.Stringer("requested_at", ev.Source()))
		}
	case *Closing:
		p.enqueueClosed(ev.Source())
	case *Closed:
		p.finalize()
	}
}

// enqueueClosed performs the CLOSING_ENQUEUED → CLOSED_ENQUEUED transition
// and appends the terminal Closed event.
func (p *Pump) enqueueClosed(src Source) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.status.CompareAndSwap(int32(StatusClosingEnqueued), int32(StatusClosedEnqueued)) {
		return
	}
	p.appendLocked(&Closed{}, false, src)
}

// finalize enters the terminal state: the registry is cleared and every
// WaitForClosed caller is released, permanently.
func (p *Pump) finalize() {
	p.status.CompareAndSwap(int32(StatusClosedEnqueued), int32(StatusClosed))
	p.registry.Clear()
	p.closeOnce.Do(func() { close(p.closedCh) })
	p.logger.Debug("pump closed")
}

// complete routes the dispatch outcome: to the waiting caller if there is
// one, otherwise a failure is re-enqueued as an UnhandledError event so that
// every failure is observable somewhere.
func (p *Pump) complete(pe *pendingEvent, err error) {
	if pe.resolve(err) {
		return
	}
	if err == nil {
		return
	}

	p.stats.unobserved.Add(1)

	// A failure while dispatching an UnhandledError is terminal. Wrapping
	// it again could recurse without bound if the error subscriber itself
	// keeps failing.
	if _, ok := pe.event.(*UnhandledError); ok {
		p.escalate(pe, err)
		return
	}

	// The report inherits the failed event's provenance so log correlation
	// points at the producer, not at pump internals.
	origin := pe.event.Source()
	ue := &UnhandledError{Err: err, Origin: origin}
	if _, enqErr := p.enqueueFrom(ue, false, origin); enqErr != nil {
		p.escalate(pe, err)
	}
}

// escalate is the out-of-band fallback for failures that cannot be delivered
// anywhere: the pump is closed or the error subscriber itself failed. DPanic
// writes synchronously in production and halts development builds.
func (p *Pump) escalate(pe *pendingEvent, err error) {
	p.logger.DPanic("dropping unobservable dispatch failure",
		zap.String("event", fmt.Sprintf("%T", pe.event)),
		zap.String("event_id", pe.id),
		zap.Stringer("enqueued_at", pe.event.Source()),
		zap.Error(err))
}

// WaitForEvent blocks until the FIFO is non-empty or the pump is closed.
// The error is non-nil only if the context ends first.
func (p *Pump) WaitForEvent(ctx context.Context) error {
	for {
		if p.HasEvents() || p.IsClosed() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.closedCh:
			return nil
		case <-p.notify:
			// The signal means "non-empty", not "one event for you": hand
			// the token back while events remain so concurrent waiters are
			// released too, then re-check, since the event may already have
			// been handled by another caller.
			p.mu.Lock()
			if len(p.fifo) > 0 {
				select {
				case p.notify <- struct{}{}:
				default:
				}
			}
			p.mu.Unlock()
		}
	}
}

// WaitForClosed blocks until the pump reaches its terminal state. The error
// is non-nil only if the context ends first.
func (p *Pump) WaitForClosed(ctx context.Context) error {
	select {
	case <-p.closedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
