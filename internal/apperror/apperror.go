// Package apperror defines the error kinds shared by every layer.
//
// Services return *AppError values; handlers map the wrapped sentinel to an
// HTTP status with errors.Is. Nothing below the handler knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("invalid request")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream failure")
)

// AppError pairs a sentinel kind with a client-facing message.
type AppError struct {
	Err     error  // one of the Err* sentinels, possibly wrapping a cause
	Message string // safe to show to clients
	Field   string // offending input field, if any
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

// ValidationFailed is the InvalidRequest kind. Field names the violated
// input so clients can highlight it.
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

// Unauthorized means the credential was missing, malformed or expired.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Upstream wraps a failure of an external collaborator (AI service, image
// storage). The cause is kept for logging but never shown to clients.
func Upstream(service string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpstream, cause),
		Message: fmt.Sprintf("%s is unavailable, please try again", service),
	}
}
