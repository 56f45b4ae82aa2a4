// Package staleness decides when mirrored data needs to be revalidated.
//
// Two independent signals are handled here and must not be mixed up:
//
//   - Age: how long ago a request key was last fetched. IsStale answers
//     "should the API be asked again".
//   - Modification: whether the remote modification timestamp of an entity is
//     newer than the one already stored. NewerThan answers "does the new data
//     warrant updating the stored record".
package staleness

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimestampFormat is returned when a modification timestamp matches none
// of the accepted layouts.
var ErrTimestampFormat = errors.New("unrecognised timestamp format")

// Accepted modification timestamp layouts, tried in order.
const (
	LayoutFractional = "2006-01-02T15:04:05.999999999Z"
	LayoutSeconds    = "2006-01-02T15:04:05Z"
)

// Versioned is implemented by every entity the mirror tracks.
type Versioned interface {
	// RecordID is the stable identifier of the entity.
	RecordID() int64

	// ModifiedAt is the raw remote modification timestamp.
	ModifiedAt() string
}

// IsStale reports whether a key last fetched at last must be refetched at now.
// A zero last (never fetched) is always stale.
func IsStale(last time.Time, maxAge time.Duration, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return last.Add(maxAge).Before(now)
}

// ParseTimestamp parses a remote modification timestamp, trying the layout
// with fractional seconds first.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(LayoutFractional, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(LayoutSeconds, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampFormat, s)
}

// NewerThan reports whether the remote timestamp is newer than the stored one.
// Unknown freshness counts as newer: an empty stored value or a timestamp on
// either side that fails to parse.
func NewerThan(remote, stored string) bool {
	if stored == "" {
		return true
	}

	r, err := ParseTimestamp(remote)
	if err != nil {
		return true
	}
	s, err := ParseTimestamp(stored)
	if err != nil {
		return true
	}

	return r.After(s)
}

// Changed reports whether record carries a newer modification time than the
// stored timestamp. ok is false when nothing is stored yet.
func Changed(record Versioned, stored string, ok bool) bool {
	if !ok {
		return true
	}
	return NewerThan(record.ModifiedAt(), stored)
}
