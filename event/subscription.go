package event

import (
	"context"
	"reflect"
	"sync/atomic"
)

// invokeFunc is the type-erased dispatch thunk built by Subscribe.
type invokeFunc func(ctx context.Context, evt Event) error

// Subscription states. A cancelled subscription is never invoked again and
// is physically removed by the next registry scan that encounters it.
const (
	subscriptionActive int32 = iota
	subscriptionCancelled
)

// Subscription associates a handler with the event type it observes.
// It is returned by Subscribe and doubles as a detach handle: Cancel (or
// the package-level Unsubscribe) ends delivery.
//
// Subscriptions hold a strong reference to their handler. A handler that is
// never unsubscribed stays reachable until the pump closes and clears the
// registry; there is no garbage-collected detach.
type Subscription struct {
	declared reflect.Type
	handler  any
	invoke   invokeFunc
	state    atomic.Int32
}

func newSubscription(declared reflect.Type, handler any, invoke invokeFunc) *Subscription {
	return &Subscription{
		declared: declared,
		handler:  handler,
		invoke:   invoke,
	}
}

// EventType returns the declared event type this subscription observes.
func (s *Subscription) EventType() reflect.Type {
	return s.declared
}

// IsActive returns true if the subscription can still receive events.
func (s *Subscription) IsActive() bool {
	return s.state.Load() == subscriptionActive
}

// Cancel permanently detaches the subscription. It is safe to call from any
// goroutine, including from inside the handler itself.
func (s *Subscription) Cancel() {
	s.state.Store(subscriptionCancelled)
}

// matches reports whether an event of runtime type rt should be delivered.
// Declared interface types match every implementing event, so subscribing
// with Event itself observes the whole stream.
func (s *Subscription) matches(rt reflect.Type) bool {
	return rt.AssignableTo(s.declared)
}
