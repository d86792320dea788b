package store

import (
	"errors"
	"fmt"
)

// ValidationError means the caller supplied malformed or out-of-range input.
// It is never worth retrying; the message is safe to show to the caller.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid builds a ValidationError.
func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError means the referenced subject does not exist. Terminal for the
// call in question.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// NotFound builds a NotFoundError.
func NotFound(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// TransientError means the backing service was unreachable or failed in a way
// that is safe to retry. The calling layer should prompt for a retry rather
// than retry silently.
type TransientError struct {
	Msg string
	Err error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(err error, format string, args ...any) error {
	return &TransientError{Msg: fmt.Sprintf(format, args...), Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
