// Package errors defines the error taxonomy used throughout nufs: every
// user-observable failure from the storage engine is a syscall errno wrapped
// in an optional message, never a bare fmt.Errorf.
package errors

import (
	"fmt"
	"syscall"
)

// Error wraps a POSIX errno with an optional human-readable message. It is
// returned by every engine operation that can fail for a reason a caller
// should be able to distinguish (missing path, name collision, exhausted
// bitmap, ...).
type Error struct {
	Errno   syscall.Errno
	message string
	cause   error
}

func New(errno syscall.Errno) *Error {
	return &Error{Errno: errno, message: errno.Error()}
}

func NewWithMessage(errno syscall.Errno, message string) *Error {
	return &Error{Errno: errno, message: fmt.Sprintf("%s: %s", errno.Error(), message)}
}

func NewWithMessagef(errno syscall.Errno, format string, args ...any) *Error {
	return NewWithMessage(errno, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.Errno.Error()
}

// WithMessage returns a new Error with the same errno but an appended
// message, leaving the receiver untouched.
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		Errno:   e.Errno,
		message: fmt.Sprintf("%s: %s", e.Error(), message),
		cause:   e,
	}
}

// Wrap attaches an underlying cause to this error, preserving both for
// errors.Is/errors.As unwrapping.
func (e *Error) Wrap(cause error) *Error {
	return &Error{
		Errno:   e.Errno,
		message: fmt.Sprintf("%s: %s", e.Error(), cause.Error()),
		cause:   cause,
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is lets errors.Is(err, ErrNotFound) succeed for any Error sharing the same
// errno, even after WithMessage/Wrap have layered on context.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Errno == other.Errno
}
