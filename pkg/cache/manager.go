package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/catalog-mirror/pkg/client"
	"github.com/Sternrassler/catalog-mirror/pkg/staleness"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fetcher performs the network request behind a cache miss.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (*client.Response, error)
}

// Config holds the global cache behaviour.
type Config struct {
	CacheMode CacheMode
	StoreMode StoreMode
}

// Options are the per-request cache hints.
type Options struct {
	// Write asks for the response to be stored (honoured in StoreDefault).
	Write bool

	// UseLocal asks for a stored response to be served (honoured in CacheDefault).
	UseLocal bool

	// MaxAge is how old a stored response may be to still be served.
	MaxAge time.Duration
}

// Manager serves JSON responses from the entry store or the network.
type Manager struct {
	fetcher   Fetcher
	store     EntryStore
	cacheMode CacheMode
	storeMode StoreMode
	now       func() time.Time
	logger    zerolog.Logger
}

// NewManager creates a cache manager. store may be nil only when both modes
// are none.
func NewManager(fetcher Fetcher, store EntryStore, cfg Config) (*Manager, error) {
	if cfg.CacheMode == "" {
		cfg.CacheMode = CacheDefault
	}
	if cfg.StoreMode == "" {
		cfg.StoreMode = StoreDefault
	}
	if _, err := ParseCacheMode(string(cfg.CacheMode)); err != nil {
		return nil, err
	}
	if _, err := ParseStoreMode(string(cfg.StoreMode)); err != nil {
		return nil, err
	}

	if store == nil && (cfg.CacheMode != CacheNone || cfg.StoreMode != StoreNone) {
		return nil, fmt.Errorf("entry store is required for cache mode %q / store mode %q", cfg.CacheMode, cfg.StoreMode)
	}
	if fetcher == nil && cfg.CacheMode != CacheOnly {
		return nil, fmt.Errorf("fetcher is required unless cache mode is %q", CacheOnly)
	}

	return &Manager{
		fetcher:   fetcher,
		store:     store,
		cacheMode: cfg.CacheMode,
		storeMode: cfg.StoreMode,
		now:       time.Now,
		logger:    log.With().Str("component", "cache").Logger(),
	}, nil
}

// Modes returns the configured cache and store modes.
func (m *Manager) Modes() (CacheMode, StoreMode) {
	return m.cacheMode, m.storeMode
}

// Store returns the underlying entry store.
func (m *Manager) Store() EntryStore {
	return m.store
}

// GetJSON returns the JSON payload for url, read from the store when the modes
// and opts allow it and fetched otherwise.
//
// In CacheOnly mode a missing entry yields ErrOffline without any network
// call. Failed requests, non-2xx statuses and undecodable bodies yield an
// *UpstreamError and nothing is stored.
func (m *Manager) GetJSON(ctx context.Context, url string, opts Options) (json.RawMessage, error) {
	key := Key(url)
	read := ReadAllowed(m.cacheMode, opts.UseLocal)
	write := WriteAllowed(m.storeMode, opts.Write)

	if read && m.cacheMode != CacheOnly {
		last, err := m.store.LastFetched(ctx, key)
		if err != nil {
			m.logger.Warn().Err(err).Str("url", key).Msg("Failed to read cache timestamp")
			read = false
		} else if staleness.IsStale(last, opts.MaxAge, m.now()) {
			if !last.IsZero() {
				CacheStale.Inc()
				m.logger.Debug().
					Str("url", key).
					Time("fetched_at", last).
					Dur("max_age", opts.MaxAge).
					Msg("Stored response is stale")
			}
			read = false
		}
	}

	if read {
		entry, err := m.store.Get(ctx, key)
		switch {
		case err == nil:
			CacheHits.Inc()
			m.logger.Debug().Str("url", key).Msg("Cache hit")
			return entry.Payload, nil
		case errors.Is(err, ErrCacheMiss):
			CacheMisses.Inc()
			m.logger.Debug().Str("url", key).Msg("Cache miss")
		default:
			CacheMisses.Inc()
			CacheErrors.WithLabelValues("decode").Inc()
			m.logger.Warn().Err(err).Str("url", key).Msg("Ignoring unreadable cache entry")
		}
	}

	if m.cacheMode == CacheOnly {
		return nil, fmt.Errorf("%w: %s", ErrOffline, key)
	}

	resp, err := m.fetcher.Fetch(ctx, key)
	if err != nil {
		return nil, &UpstreamError{URL: key, Err: err}
	}
	if !resp.OK() {
		return nil, &UpstreamError{URL: key, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	var payload bytes.Buffer
	if err := json.Compact(&payload, resp.Body); err != nil {
		return nil, &UpstreamError{URL: key, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrInvalidPayload, err)}
	}

	if write {
		entry := &Entry{
			URL:       key,
			Payload:   payload.Bytes(),
			FetchedAt: resp.DispatchedAt,
		}
		if err := m.store.Put(ctx, entry, m.storeMode == StoreLast); err != nil {
			return nil, err
		}
		CacheWrites.Inc()
	}

	return payload.Bytes(), nil
}
