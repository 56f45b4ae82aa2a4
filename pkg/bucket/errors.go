package bucket

import (
	"errors"
	"fmt"
)

// ErrBlobNotFound indicates no blob is stored for a hash.
var ErrBlobNotFound = errors.New("blob not found")

// IngestError reports an asset that could not be mirrored.
type IngestError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *IngestError) Unwrap() error {
	return e.Err
}
