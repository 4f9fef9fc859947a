// Package errdefs defines the error classes shared by the binding and
// execution layers. Callers wrap them with fmt.Errorf("%w: ...") and test
// for them with errors.Is.
package errdefs

import "errors"

var (
	// ErrInvalidArgument is returned when a caller passes a value that can
	// never be valid for the operation, such as a nil type or an empty
	// command selection.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidOperation is returned when an operation is not permitted in
	// the current state, e.g. explicitly invoking an implicit command.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrBinding is returned when a bound callable cannot be resolved to a
	// live member on its target type.
	ErrBinding = errors.New("binding failed")

	// ErrInvocation wraps failures raised by the invoked member itself,
	// including recovered panics and returned errors.
	ErrInvocation = errors.New("invocation failed")
)
