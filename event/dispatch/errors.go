package dispatch

import (
	"errors"
	"fmt"
)

// ErrHandlerPanic is matched by errors.Is for any *PanicError.
var ErrHandlerPanic = errors.New("handler panicked")

// PanicError wraps a recovered handler panic as an error so it can travel
// the same propagation paths as an ordinary handler error.
type PanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace captured at the point of panic.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// Unwrap returns the panic value if it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
