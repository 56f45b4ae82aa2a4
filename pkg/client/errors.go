package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled between attempts.
	ErrContextCancelled = errors.New("context cancelled")
)

// RequestError reports a request that failed at the transport level.
type RequestError struct {
	URL      string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("request %s failed (%d attempts): %v", e.URL, e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsExhausted reports whether err is a request that ran out of retries.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrRetryExhausted)
}
