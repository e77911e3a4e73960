package event

import (
	"context"
	"reflect"
	"sync"

	"github.com/dshills/eventcore/event/dispatch"
)

// Registry holds the subscriptions of one pump, in registration order.
// Mutation is guarded by mu; the invoke path is exclusive under invokeMu so
// that at most one dispatch batch (resolve targets + run handlers) proceeds
// at any instant. Handlers therefore never run concurrently with each other
// for the same pump.
type Registry struct {
	mu   sync.Mutex
	subs []*Subscription

	invokeMu sync.Mutex
	exec     *dispatch.Executor
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		exec: dispatch.NewExecutor(),
	}
}

// Add inserts a subscription for (handler, declared) unless a live one
// already exists, in which case the existing subscription is returned.
// Cancelled entries encountered during the scan are pruned.
func (r *Registry) Add(declared reflect.Type, handler any, invoke invokeFunc) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.subs[:0]
	var existing *Subscription
	for _, s := range r.subs {
		if !s.IsActive() {
			continue // prune
		}
		if existing == nil && s.declared == declared && sameHandler(s.handler, handler) {
			existing = s
		}
		kept = append(kept, s)
	}
	clearTail(r.subs, len(kept))
	r.subs = kept

	if existing != nil {
		return existing
	}

	sub := newSubscription(declared, handler, invoke)
	r.subs = append(r.subs, sub)
	return sub
}

// Remove cancels and removes the first live subscription matching
// (handler, declared), returning whether one was found. Cancelled entries
// encountered during the scan are pruned.
func (r *Registry) Remove(declared reflect.Type, handler any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	kept := r.subs[:0]
	for _, s := range r.subs {
		if !s.IsActive() {
			continue // prune
		}
		if !found && s.declared == declared && sameHandler(s.handler, handler) {
			s.Cancel()
			found = true
			continue
		}
		kept = append(kept, s)
	}
	clearTail(r.subs, len(kept))
	r.subs = kept

	return found
}

// Clear drops all subscriptions, releasing the handler references they hold.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		s.Cancel()
	}
	r.subs = nil
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.subs {
		if s.IsActive() {
			n++
		}
	}
	return n
}

// DispatchTargets returns the live subscriptions whose declared type the
// event's runtime type is assignable to, in registration order. The returned
// slice is a snapshot; cancelled entries found along the way are pruned.
func (r *Registry) DispatchTargets(rt reflect.Type) []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var targets []*Subscription
	kept := r.subs[:0]
	for _, s := range r.subs {
		if !s.IsActive() {
			continue // prune
		}
		kept = append(kept, s)
		if s.matches(rt) {
			targets = append(targets, s)
		}
	}
	clearTail(r.subs, len(kept))
	r.subs = kept

	return targets
}

// InvokeResult summarizes one dispatch batch.
type InvokeResult struct {
	// Invoked is the number of handlers that ran.
	Invoked int

	// Failed is the number of handlers that returned an error or panicked.
	Failed int

	// Panicked is the number of handlers that panicked.
	Panicked int

	// Err is nil if every handler succeeded, the error itself if exactly
	// one failed, or an *AggregateError stamped with the event's
	// provenance otherwise.
	Err error
}

// Invoke resolves the dispatch targets for evt and runs each handler with
// per-handler fault isolation: one failing or panicking handler never
// prevents its siblings from running. At most one Invoke proceeds at a time.
func (r *Registry) Invoke(ctx context.Context, evt Event) InvokeResult {
	r.invokeMu.Lock()
	defer r.invokeMu.Unlock()

	targets := r.DispatchTargets(reflect.TypeOf(evt))

	var res InvokeResult
	var errs []error
	for _, sub := range targets {
		// A target may have been cancelled between resolution and its
		// turn, typically by an earlier handler of the same event.
		if !sub.IsActive() {
			continue
		}

		invoke := sub.invoke
		result := r.exec.Execute(ctx, evt, dispatch.HandlerFunc(
			func(ctx context.Context, event any) error {
				return invoke(ctx, event.(Event))
			}))

		res.Invoked++
		if result.Panicked {
			res.Panicked++
		}
		if err := result.Err(); err != nil {
			res.Failed++
			errs = append(errs, err)
		}
	}

	switch len(errs) {
	case 0:
	case 1:
		res.Err = errs[0]
	default:
		res.Err = newAggregateError(evt.Source(), errs)
	}
	return res
}

// sameHandler reports whether two handler values identify the same
// subscriber. Functions, pointers and channels compare by identity; other
// comparable values compare by equality.
func sameHandler(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}
	switch av.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Chan, reflect.Map,
		reflect.Slice, reflect.UnsafePointer:
		return av.Pointer() == bv.Pointer()
	}
	if av.Type().Comparable() {
		return a == b
	}
	return false
}

// clearTail nils out the slots beyond n so pruned subscriptions do not keep
// their handlers reachable through the shared backing array.
func clearTail(subs []*Subscription, n int) {
	for i := n; i < len(subs); i++ {
		subs[i] = nil
	}
}
