package event

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/eventcore/event/dispatch"
)

// probe is a plain event for registry tests.
type probe struct {
	BaseEvent
	n int
}

func typeOf[T Event]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func noopInvoke(ctx context.Context, evt Event) error { return nil }

func TestRegistry_Add_DeduplicatesLiveEntries(t *testing.T) {
	r := NewRegistry()
	handler := &struct{ name string }{"h"}

	first := r.Add(typeOf[*probe](), handler, noopInvoke)
	second := r.Add(typeOf[*probe](), handler, noopInvoke)

	// Same handler, same declared type: no-op, existing entry returned.
	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Len())

	// Same handler, different declared type: a distinct subscription.
	third := r.Add(typeOf[*Closing](), handler, noopInvoke)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_Add_ReplacesCancelledEntry(t *testing.T) {
	r := NewRegistry()
	handler := &struct{ name string }{"h"}

	first := r.Add(typeOf[*probe](), handler, noopInvoke)
	first.Cancel()

	// The stale entry is pruned during the scan, so this is a fresh insert.
	second := r.Add(typeOf[*probe](), handler, noopInvoke)
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	h1 := &struct{ name string }{"h1"}
	h2 := &struct{ name string }{"h2"}

	r.Add(typeOf[*probe](), h1, noopInvoke)
	r.Add(typeOf[*probe](), h2, noopInvoke)

	assert.True(t, r.Remove(typeOf[*probe](), h1))
	assert.Equal(t, 1, r.Len())

	// Already removed.
	assert.False(t, r.Remove(typeOf[*probe](), h1))

	// Wrong declared type.
	assert.False(t, r.Remove(typeOf[*Closing](), h2))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	sub := r.Add(typeOf[*probe](), &struct{}{}, noopInvoke)

	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.False(t, sub.IsActive())
	assert.Empty(t, r.DispatchTargets(typeOf[*probe]()))
}

func TestRegistry_DispatchTargets_Assignability(t *testing.T) {
	r := NewRegistry()

	exact := r.Add(typeOf[*probe](), &struct{ name string }{"exact"}, noopInvoke)
	all := r.Add(typeOf[Event](), &struct{ name string }{"all"}, noopInvoke)
	other := r.Add(typeOf[*Closing](), &struct{ name string }{"other"}, noopInvoke)

	targets := r.DispatchTargets(reflect.TypeOf(&probe{}))

	// The exact match and the interface subscription, in registration
	// order; the unrelated declared type is skipped.
	require.Len(t, targets, 2)
	assert.Same(t, exact, targets[0])
	assert.Same(t, all, targets[1])
	assert.NotContains(t, targets, other)
}

func TestRegistry_DispatchTargets_PrunesCancelled(t *testing.T) {
	r := NewRegistry()

	stale := r.Add(typeOf[*probe](), &struct{ name string }{"stale"}, noopInvoke)
	live := r.Add(typeOf[*probe](), &struct{ name string }{"live"}, noopInvoke)
	stale.Cancel()

	targets := r.DispatchTargets(reflect.TypeOf(&probe{}))

	require.Len(t, targets, 1)
	assert.Same(t, live, targets[0])
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Invoke_NoTargets(t *testing.T) {
	r := NewRegistry()

	res := r.Invoke(context.Background(), &probe{})

	assert.Zero(t, res.Invoked)
	assert.NoError(t, res.Err)
}

func TestRegistry_Invoke_SingleErrorPassesThrough(t *testing.T) {
	r := NewRegistry()
	wantErr := errors.New("handler failed")

	r.Add(typeOf[*probe](), "ok", noopInvoke)
	r.Add(typeOf[*probe](), "bad", func(ctx context.Context, evt Event) error {
		return wantErr
	})

	res := r.Invoke(context.Background(), &probe{})

	assert.Equal(t, 2, res.Invoked)
	assert.Equal(t, 1, res.Failed)
	// Exactly one failure: the error itself, not an aggregate.
	assert.Same(t, wantErr, res.Err)
}

func TestRegistry_Invoke_AggregatesInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	err1 := errors.New("first")
	err2 := errors.New("second")

	r.Add(typeOf[*probe](), "h1", func(ctx context.Context, evt Event) error {
		return err1
	})
	r.Add(typeOf[*probe](), "h2", func(ctx context.Context, evt Event) error {
		return err2
	})

	evt := &probe{}
	src := Source{File: "caller.go", Function: "caller", Line: 7}
	evt.stamp(src)

	res := r.Invoke(context.Background(), evt)

	var agg *AggregateError
	require.ErrorAs(t, res.Err, &agg)
	require.Equal(t, []error{err1, err2}, agg.Errors())
	assert.Equal(t, src, agg.Source())
	assert.ErrorIs(t, res.Err, err1)
	assert.ErrorIs(t, res.Err, err2)
}

func TestRegistry_Invoke_PanicIsIsolated(t *testing.T) {
	r := NewRegistry()

	ran := false
	r.Add(typeOf[*probe](), "panics", func(ctx context.Context, evt Event) error {
		panic("boom")
	})
	r.Add(typeOf[*probe](), "survives", func(ctx context.Context, evt Event) error {
		ran = true
		return nil
	})

	res := r.Invoke(context.Background(), &probe{})

	assert.True(t, ran, "sibling handler must run despite the panic")
	assert.Equal(t, 2, res.Invoked)
	assert.Equal(t, 1, res.Panicked)
	assert.ErrorIs(t, res.Err, dispatch.ErrHandlerPanic)
}

func TestRegistry_Invoke_SkipsHandlerCancelledMidBatch(t *testing.T) {
	r := NewRegistry()

	var second *Subscription
	r.Add(typeOf[*probe](), "canceller", func(ctx context.Context, evt Event) error {
		second.Cancel()
		return nil
	})
	second = r.Add(typeOf[*probe](), "victim", func(ctx context.Context, evt Event) error {
		t.Fatal("cancelled handler must not run")
		return nil
	})

	res := r.Invoke(context.Background(), &probe{})
	assert.Equal(t, 1, res.Invoked)
}

func TestSameHandler(t *testing.T) {
	type named struct{ name string }
	p1 := &named{"a"}
	p2 := &named{"a"}
	fn1 := HandlerFunc[*probe](func(ctx context.Context, evt *probe) error { return nil })
	fn2 := HandlerFunc[*probe](func(ctx context.Context, evt *probe) error { return nil })

	assert.True(t, sameHandler(p1, p1))
	assert.False(t, sameHandler(p1, p2), "distinct pointers are distinct handlers")
	assert.True(t, sameHandler(fn1, fn1))
	assert.False(t, sameHandler(fn1, fn2))
	assert.True(t, sameHandler(named{"a"}, named{"a"}), "comparable values compare by equality")
	assert.False(t, sameHandler(p1, named{"a"}), "different types never match")
	assert.True(t, sameHandler(nil, nil))
	assert.False(t, sameHandler(p1, nil))
}
