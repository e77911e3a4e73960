package dispatch

import (
	"context"
	"time"
)

// Handler is the type-erased interface executed by the Executor.
// This mirrors the handler shape used by the event package to avoid
// circular imports.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, event any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// Result represents the outcome of a single handler execution.
type Result struct {
	// Success is true if the handler completed without error or panic.
	Success bool

	// Error is the error returned by the handler, if any.
	Error error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the handler took to execute.
	Duration time.Duration

	// Skipped is true if the handler was not executed (context cancelled).
	Skipped bool
}

// IsSuccess returns true if the result indicates successful execution.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// Err converts the result into a single error value: nil on success, the
// handler's error on failure, or a *PanicError if the handler panicked.
func (r Result) Err() error {
	switch {
	case r.Panicked:
		return &PanicError{Value: r.PanicValue, Stack: r.PanicStack}
	case r.Error != nil:
		return r.Error
	default:
		return nil
	}
}

// PanicHandler is called when a handler panics during execution.
// It receives the event being processed, the panic value, and the stack trace.
type PanicHandler func(event any, panicValue any, stack []byte)

// defaultPanicHandler is a no-op; the caller observes panics through the
// Result and decides how to report them.
func defaultPanicHandler(event any, panicValue any, stack []byte) {}
