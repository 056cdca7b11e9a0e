package shared

import "errors"

// RetryableError marks an error as transient: the operation that produced it
// may be retried without any corrective action.
type RetryableError struct {
	Err error
}

// Error implements the error interface
func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err so IsRetryable reports true for it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable returns true if err (or any wrapped error) is marked retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
