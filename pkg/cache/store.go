package cache

import (
	"context"
	"time"
)

// EntryStore persists entries keyed by normalized URL.
type EntryStore interface {
	// Get returns the newest entry for key, ErrCacheMiss when there is none
	// and ErrInvalidEntry when it cannot be decoded.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put stores entry. With replace set, older entries for the same key are
	// removed; otherwise the entry is added next to them.
	Put(ctx context.Context, entry *Entry, replace bool) error

	// LastFetched returns the newest fetch time for key, or the zero time.
	LastFetched(ctx context.Context, key string) (time.Time, error)

	// Exists reports whether any entry is stored for key.
	Exists(ctx context.Context, key string) (bool, error)
}
