package bucket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_bucket_ingested_total",
		Help: "Total number of assets ingested into the bucket",
	})

	dedupTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_bucket_dedup_total",
		Help: "Total number of ingests whose content was already stored",
	})

	skippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_bucket_skipped_total",
		Help: "Total number of downloads skipped because the stored copy is current",
	})

	errorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_bucket_errors_total",
		Help: "Total number of failed asset ingests",
	})

	bytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_bucket_bytes_total",
		Help: "Total number of bytes hashed by the bucket",
	})
)
