// Package cache provides the cache-aware request layer used by the catalog
// mirror.
//
// Every API response can be persisted as an entry keyed by the exact request
// URL. Two global modes decide how the store is used:
//
//   - CacheMode controls reads: none, default (caller decides via
//     Options.UseLocal), all (always read) and only (offline, never hit the
//     network).
//   - StoreMode controls writes: none, default (caller decides via
//     Options.Write), all (always append a history row) and last (keep only
//     the newest row per URL).
//
// Outside of offline mode a stored entry is only served while it is younger
// than Options.MaxAge.
//
// # Basic Usage
//
//	store := cache.NewSQLStore(cache.StaticConn(db))
//	if err := store.Migrate(ctx); err != nil {
//		return err
//	}
//
//	manager, err := cache.NewManager(apiClient, store, cache.Config{
//		CacheMode: cache.CacheDefault,
//		StoreMode: cache.StoreDefault,
//	})
//	if err != nil {
//		return err
//	}
//
//	payload, err := manager.GetJSON(ctx, "/games", cache.Options{
//		Write:    true,
//		UseLocal: true,
//		MaxAge:   time.Hour,
//	})
//	if errors.Is(err, cache.ErrOffline) {
//		// offline mode and nothing stored
//	}
//
// # Backends
//
// SQLStore keeps entries in the api_requests table and can share a
// transaction with the entity store through Conn. RedisStore keeps one
// sorted set per URL, scored by fetch time, for a cache shared between hosts.
//
// # Metrics
//
//   - catalog_cache_hits_total - Entries served from the store
//   - catalog_cache_misses_total - Reads that found nothing usable
//   - catalog_cache_stale_total - Reads skipped because the entry was too old
//   - catalog_cache_writes_total - Entries written
//   - catalog_cache_errors_total{operation} - Store failures
package cache
