package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_retries_total",
		Help: "Total number of retry attempts",
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)

// retry runs fn until it succeeds or limit retries have been spent, i.e. at
// most limit+1 attempts. It returns the number of attempts made.
func retry(ctx context.Context, limit int, backoff time.Duration, logger zerolog.Logger, fn func(attempt int) error) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= limit+1; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return attempt, nil
		}

		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
			if ctxErr == nil {
				ctxErr = err
			}
			return attempt, fmt.Errorf("%w: %v", ErrContextCancelled, ctxErr)
		}

		// If this was the last attempt, don't wait
		if attempt > limit {
			break
		}

		retriesTotal.Inc()
		logger.Debug().
			Int("attempt", attempt).
			Int("retry_limit", limit).
			Msg("Retrying request")

		if backoff > 0 {
			// Add jitter (±20% randomness)
			jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))

			select {
			case <-ctx.Done():
				return attempt, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
			case <-time.After(jitter):
			}
		}
	}

	retryExhaustedTotal.Inc()
	logger.Error().
		Err(lastErr).
		Int("attempts", limit+1).
		Msg("Retry attempts exhausted")

	return limit + 1, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, limit+1, lastErr)
}
