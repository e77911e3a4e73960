package event

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedWorker(t *testing.T, opts ...Option) *Worker {
	t.Helper()
	w := NewWorker(opts...)
	require.NoError(t, w.Start())
	t.Cleanup(func() {
		w.BeginClose()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = w.WaitForClosed(ctx)
	})
	return w
}

func TestWorker_StartOnce(t *testing.T) {
	w := NewWorker()
	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Start(), ErrWorkerAlreadyStarted)

	w.BeginClose()
	require.NoError(t, w.WaitForClosed(context.Background()))
}

func TestWorker_DispatchesAutonomously(t *testing.T) {
	w := startedWorker(t)

	var handled atomic.Int32
	_, err := SubscribeFunc(w, func(_ context.Context, _ *tick) error {
		handled.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 10; i++ {
		require.NoError(t, w.EnqueueAndWait(ctx, &tick{seq: i}))
	}

	assert.Equal(t, int32(10), handled.Load())
}

func TestWorker_EnqueueAndWaitSeesHandlerError(t *testing.T) {
	w := startedWorker(t)
	wantErr := errors.New("handler failed")

	_, err := SubscribeFunc(w, func(_ context.Context, _ *tick) error {
		return wantErr
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Same(t, wantErr, w.EnqueueAndWait(ctx, &tick{}))
}

func TestWorker_StampsDelegatedCallSite(t *testing.T) {
	w := startedWorker(t)

	srcCh := make(chan Source, 1)
	_, err := SubscribeFunc(w, func(_ context.Context, evt *tick) error {
		srcCh <- evt.Source()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, w.Enqueue(&tick{}))

	select {
	case src := <-srcCh:
		// The worker forwards the original enqueue call site, not its own
		// delegation frame.
		assert.Contains(t, src.Function, "TestWorker_StampsDelegatedCallSite")
	case <-time.After(5 * time.Second):
		t.Fatal("event never dispatched")
	}
}

func TestWorker_CloseProtocol(t *testing.T) {
	w := NewWorker()
	require.NoError(t, w.Start())

	order := make(chan string, 4)
	_, err := SubscribeFunc(w, func(_ context.Context, _ *CloseRequest) error {
		order <- "request"
		return nil
	})
	require.NoError(t, err)
	_, err = SubscribeFunc(w, func(_ context.Context, _ *Closing) error {
		order <- "closing"
		return nil
	})
	require.NoError(t, err)
	_, err = SubscribeFunc(w, func(_ context.Context, _ *Closed) error {
		order <- "closed"
		return nil
	})
	require.NoError(t, err)

	w.RequestClose()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.WaitForClosed(ctx))

	close(order)
	var got []string
	for s := range order {
		got = append(got, s)
	}
	assert.Equal(t, []string{"request", "closing", "closed"}, got)
	assert.Equal(t, StatusClosed, w.Status())
	assert.ErrorIs(t, w.Enqueue(&tick{}), ErrPumpClosed)
}

func TestWorker_DoneClosesAfterShutdown(t *testing.T) {
	w := NewWorker()
	require.NoError(t, w.Start())

	select {
	case <-w.Done():
		t.Fatal("Done closed before shutdown")
	default:
	}

	w.BeginClose()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch goroutine never exited")
	}
	assert.True(t, w.IsClosed())
}

func TestWorker_VetoedRequestKeepsRunning(t *testing.T) {
	w := startedWorker(t)

	vetoes := atomic.Int32{}
	_, err := SubscribeFunc(w, func(_ context.Context, evt *CloseRequest) error {
		if vetoes.Add(1) == 1 {
			evt.CanBeginClose = false
		}
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// First request is vetoed; the worker keeps dispatching.
	require.NoError(t, w.EnqueueAndWait(ctx, NewCloseRequest()))
	assert.Equal(t, StatusOpen, w.Status())
	require.NoError(t, w.EnqueueAndWait(ctx, &tick{}))

	// Second request goes through.
	require.NoError(t, w.EnqueueAndWait(ctx, NewCloseRequest()))
	require.NoError(t, w.WaitForClosed(ctx))
}

func TestWorker_ImplementsQueue(t *testing.T) {
	check := func(t *testing.T, q Queue) {
		t.Helper()

		var handled atomic.Int32
		_, err := SubscribeFunc(q, func(_ context.Context, _ *tick) error {
			handled.Add(1)
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, q.Enqueue(&tick{}))

		q.BeginClose()
		if p, ok := q.(*Pump); ok {
			p.HandleAll(context.Background())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, q.WaitForClosed(ctx))
		assert.Equal(t, int32(1), handled.Load())
		assert.True(t, q.IsClosed())
	}

	t.Run("pump", func(t *testing.T) {
		check(t, NewPump())
	})
	t.Run("worker", func(t *testing.T) {
		w := NewWorker()
		require.NoError(t, w.Start())
		check(t, w)
	})
}

func TestWorker_UnsubscribeThroughQueue(t *testing.T) {
	w := startedWorker(t)

	rec := &recorder[*tick]{}
	_, err := Subscribe[*tick](w, rec)
	require.NoError(t, err)

	assert.True(t, Unsubscribe[*tick](w, rec))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.EnqueueAndWait(ctx, &tick{}))
	assert.Empty(t, rec.events())
}
