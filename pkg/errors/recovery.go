package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a panic recovered by Recover. It lets scope-bound cleanup,
// such as closing a tracking run, treat a panic like any other failure.
type PanicError struct {
	// PanicValue is what was passed to panic.
	PanicValue interface{}
	// StackTrace is the goroutine stack at the point of recovery.
	StackTrace string
	// Operation names the scope that recovered.
	Operation string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.PanicValue.(error); ok {
		return err
	}
	return nil
}

// String includes the stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s", e.Operation, e.PanicValue, e.StackTrace)
}

func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover converts a panic into *err. It must be deferred directly:
//
//	func (s *Session) Run(...) (err error) {
//	    defer errors.Recover(&err, "tracking.Run")
//	    ...
//	}
//
// An error already stored in *err is joined after the PanicError.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	panicErr := NewPanicError(operation, r)
	if *err != nil {
		*err = Join(panicErr, *err)
		return
	}
	*err = panicErr
}
