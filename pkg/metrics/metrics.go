// Package metrics provides the Prometheus endpoint of the catalog mirror.
// All metrics are defined in their respective packages (client, ratelimit,
// cache, pagination, bucket, store, mirror) to maintain modularity and avoid
// circular dependencies.
//
// This package serves them and documents what is available.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the catalog mirror.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// HealthFunc reports whether the process is healthy.
type HealthFunc func() error

// Handler returns a mux serving /metrics and /health.
func Handler(health HealthFunc) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if health != nil {
			if err := health(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Server serves Handler on an address until its context is cancelled.
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string, health HealthFunc) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           Handler(health),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	logger := log.With().Str("component", "metrics").Logger()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", s.srv.Addr).Msg("Serving metrics")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - catalog_ratelimit_waits_total (Counter): Requests delayed by the spacer
//   - catalog_ratelimit_wait_seconds (Histogram): Time spent waiting for a dispatch slot
//
// Request Metrics (pkg/client):
//   - catalog_requests_total{status} (Counter): Requests by HTTP status or "transport_error"
//   - catalog_request_duration_seconds (Histogram): Request duration excluding spacing
//   - catalog_retries_total (Counter): Retry attempts
//   - catalog_retry_exhausted_total (Counter): Requests that exhausted their retries
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total (Counter): Responses served from the store
//   - catalog_cache_misses_total (Counter): Reads that found nothing usable
//   - catalog_cache_stale_total (Counter): Reads skipped as too old
//   - catalog_cache_writes_total (Counter): Responses stored
//   - catalog_cache_errors_total{operation} (Counter): Store failures
//
// Pagination Metrics (pkg/pagination):
//   - catalog_pages_total (Counter): Pages yielded
//   - catalog_pagination_failures_total (Counter): Walks ended by a failure
//
// Bucket Metrics (pkg/bucket):
//   - catalog_bucket_ingested_total (Counter): Assets ingested
//   - catalog_bucket_dedup_total (Counter): Ingests whose content was already stored
//   - catalog_bucket_skipped_total (Counter): Downloads skipped as up to date
//   - catalog_bucket_errors_total (Counter): Failed ingests
//   - catalog_bucket_bytes_total (Counter): Bytes hashed
//
// Sync Metrics (internal/mirror):
//   - catalog_sync_runs_total{result} (Counter): Sync runs by outcome
//   - catalog_sync_entities_total{kind, outcome} (Counter): Entities processed
//   - catalog_sync_duration_seconds (Histogram): Sync run duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Share of time spent waiting on the spacer
//   rate(catalog_ratelimit_wait_seconds_sum[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
