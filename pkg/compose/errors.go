package compose

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNextCalledMultipleTimes is returned when a middleware calls its next
// function more than once during a single pipeline invocation.
var ErrNextCalledMultipleTimes = errors.New("next() called multiple times")

// TypeError reports a value of the wrong kind where a middleware, or a list of
// middleware, was expected. It is also used to describe non-error panic values.
type TypeError struct {
	Msg string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return "TypeError: " + e.Msg
}

// TypeErrorf builds a *TypeError with a stack trace attached.
func TypeErrorf(format string, args ...any) error {
	return errors.WithStack(&TypeError{Msg: fmt.Sprintf(format, args...)})
}

// PanicError carries a value recovered from a panicking middleware together
// with the stack at the point of the panic.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Format prints the stack for %+v, the way github.com/pkg/errors does.
func (e *PanicError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s\n%s", e.Error(), e.Stack)
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// IsNonError reports whether the panic value was not an error.
func (e *PanicError) IsNonError() bool {
	_, ok := e.Value.(error)
	return !ok
}
