package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrOffline is returned in offline mode when nothing is stored for a key
	ErrOffline = errors.New("offline: no stored response")

	// ErrInvalidPayload indicates the upstream body was not valid JSON
	ErrInvalidPayload = errors.New("response body is not valid JSON")
)

// UpstreamError reports a request that produced no usable response: the
// transport gave up, the status was not 2xx, or the body did not decode.
type UpstreamError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err is an *UpstreamError.
func IsUpstream(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}
