// Package diag distinguishes internal-error conditions (a pass-driver
// invariant broken by a bug in this core) from recoverable ones (a
// parse or type error reported by an external frontend), and formats
// both plus IR dumps for the driver.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// InternalError marks a condition spec.md §7.2 calls out as an
// invariant violation this core itself is responsible for (an arity
// mismatch, a fact pointing at a non-repeatable tail, a missing
// block) rather than a user-facing mistake in the program being
// compiled. It carries a stack trace from the point of detection via
// github.com/pkg/errors, so `cmd/milc` can print one when it surfaces.
type InternalError struct {
	msg   string
	cause error
}

// NewInternalError builds an InternalError with a stack trace attached
// at the call site.
func NewInternalError(format string, args ...interface{}) error {
	return errors.WithStack(&InternalError{msg: fmt.Sprintf(format, args...)})
}

// WrapInternal marks an existing error as internal, attaching a stack
// trace at the call site (even if err already carries one).
func WrapInternal(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&InternalError{msg: fmt.Sprintf(format, args...), cause: err})
}

func (e *InternalError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("internal error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("internal error: %s", e.msg)
}

func (e *InternalError) Unwrap() error { return e.cause }

// IsInternal reports whether err is (or wraps) an *InternalError,
// unwrapping github.com/pkg/errors' stack-trace wrapper via
// errors.Cause first.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	_, ok := errors.Cause(err).(*InternalError)
	return ok
}

// StackTrace returns the formatted stack trace attached to err's
// outermost errors.WithStack, or "" if err carries none.
func StackTrace(err error) string {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	st, ok := err.(stackTracer)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%+v", st.StackTrace())
}
