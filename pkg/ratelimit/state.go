// Package ratelimit implements client-side request spacing for the catalog API.
// The remote service tolerates a fixed request rate, so every outbound request
// passes through a single Spacer that keeps dispatches at least one interval apart.
package ratelimit

import (
	"time"
)

// State is a point-in-time snapshot of a Spacer.
type State struct {
	// Interval is the configured minimum spacing between dispatches.
	Interval time.Duration `json:"interval"`

	// LastDispatch is when the most recent request was released.
	// Zero if no request has been dispatched yet.
	LastDispatch time.Time `json:"last_dispatch"`

	// Waits counts how many dispatches had to be delayed.
	Waits int64 `json:"waits"`

	// Waited is the total time spent delaying dispatches.
	Waited time.Duration `json:"waited"`
}

// NextAllowed returns the earliest time the next request may be dispatched.
func (s State) NextAllowed() time.Time {
	if s.LastDispatch.IsZero() {
		return time.Time{}
	}
	return s.LastDispatch.Add(s.Interval)
}

// Deficit returns how long a request issued at now would have to wait.
// Returns 0 if no wait is necessary.
func (s State) Deficit(now time.Time) time.Duration {
	next := s.NextAllowed()
	if next.IsZero() || !next.After(now) {
		return 0
	}
	return next.Sub(now)
}

// IsIdle returns true if no request has been dispatched within maxAge.
func (s State) IsIdle(now time.Time, maxAge time.Duration) bool {
	return s.LastDispatch.IsZero() || now.Sub(s.LastDispatch) > maxAge
}
