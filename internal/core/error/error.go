package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "not found"
)

// Sentinel errors for the agent core. Callers match them with errors.Is.
var (
	// ErrStoreUnavailable means a query reached the embedding store before
	// any ingestion populated it. Recoverable by running the ingestion CLI.
	ErrStoreUnavailable = errors.New("embedding store unavailable: ingestion has not been run")

	// ErrInvalidArgument means malformed parameters, rejected before touching the store.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoApplicableEdge means a non-terminal node had outgoing edges and no
	// guard matched. A graph authoring bug, fatal to the traversal.
	ErrNoApplicableEdge = errors.New("no applicable edge")

	// ErrStepLimitExceeded means a traversal ran past its step budget,
	// usually a cycle whose exit guard never fires. Fatal to the traversal.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// StatusOf maps core sentinel errors to an HTTP status for the front end.
// Unknown errors map to 500 so nothing internal leaks by default.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		var appErr *AppError
		if errors.As(err, &appErr) && appErr.Status != 0 {
			return appErr.Status
		}
		return http.StatusInternalServerError
	}
}
