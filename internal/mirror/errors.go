package mirror

import (
	"errors"
	"fmt"
)

var (
	// ErrInterrupted is returned when a sync stops early because its context
	// was cancelled. Work finished before the interruption is kept.
	ErrInterrupted = errors.New("sync interrupted")

	// ErrClosed is returned by Run after Shutdown.
	ErrClosed = errors.New("syncer is shut down")
)

func interrupted(err error) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, err)
}
