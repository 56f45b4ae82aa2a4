package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks entries served from the store
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of request cache hits",
		},
	)

	// CacheMisses tracks reads that found no usable entry
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of request cache misses",
		},
	)

	// CacheStale tracks reads skipped because the entry exceeded its max age
	CacheStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_stale_total",
			Help: "Total number of request cache reads skipped as stale",
		},
	)

	// CacheWrites tracks stored entries
	CacheWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_writes_total",
			Help: "Total number of request cache entries written",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "put", "last_fetched", "decode"
	)
)
