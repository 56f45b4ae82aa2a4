package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_runs_total",
			Help: "Total number of sync runs by result",
		},
		[]string{"result"}, // "ok", "interrupted", "failed"
	)

	entitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_entities_total",
			Help: "Total number of entities processed by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_sync_duration_seconds",
			Help:    "Duration of sync runs",
			Buckets: prometheus.ExponentialBuckets(1, 4, 9), // 1s .. ~18h
		},
	)
)

const (
	kindGame     = "game"
	kindCategory = "category"
	kindMod      = "mod"
	kindFile     = "file"
	kindAsset    = "asset"
)
