package domain

import "errors"

var (
	// ErrAuthentication is returned when a request carries a missing or
	// invalid signature or bearer token. Never retried.
	ErrAuthentication = errors.New("authentication failed")

	// ErrValidation is returned for structurally malformed payloads
	// (missing required fields). Never retried, never enqueued.
	ErrValidation = errors.New("invalid payload")
)

// RetryableError wraps transient downstream failures that should be retried
// with backoff rather than rejected.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is (or wraps) a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
