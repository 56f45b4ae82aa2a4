package cache

import (
	"encoding/json"
	"time"
)

// Entry is one stored API response.
type Entry struct {
	// URL is the normalized request URL the entry is keyed by
	URL string `json:"url"`

	// Payload is the compact JSON response body
	Payload json.RawMessage `json:"payload"`

	// FetchedAt is when the request was dispatched
	FetchedAt time.Time `json:"fetched_at"`
}

// Age returns how old the entry is at now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Valid reports whether the payload is well-formed JSON.
func (e *Entry) Valid() bool {
	return len(e.Payload) > 0 && json.Valid(e.Payload)
}
