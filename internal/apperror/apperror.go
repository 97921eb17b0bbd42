// Package apperror defines the application's domain errors.
//
// SENTINEL ERRORS + errors.Is:
// Each error category has a package-level sentinel (ErrNotFound, etc.).
// Services wrap these via the constructor functions below, and the HTTP
// layer maps them to status codes with errors.Is — it never string-matches
// error messages.
//
// The execution engine adds two categories of its own:
//   - ErrClosedPipe: input was sent to a program that has already exited.
//     Recoverable — the caller should stop sending input, the run is over.
//   - ErrUnavailable: the interpreter binary could not be started at all.
//     No session is created; the caller sees a 503.
//
// Note what is NOT here: a program exiting nonzero or crashing is not an
// application error. That's ordinary execution data (exit code + stderr)
// surfaced to the learner.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("Validation Error")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrClosedPipe  = errors.New("closed pipe")
	ErrUnavailable = errors.New("unavailable")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// ClosedPipe returns an AppError for writes to a program that has exited.
// HTTP handlers map this to 409 Conflict.
func ClosedPipe(id string) *AppError {
	return &AppError{
		Err:     ErrClosedPipe,
		Message: fmt.Sprintf("program in session %s has already exited", id),
	}
}

// Unavailable returns an AppError for failures to start the interpreter.
// HTTP handlers map this to 503 Service Unavailable.
func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
	}
}
