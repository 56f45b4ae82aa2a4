package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for request spacing.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_ratelimit_waits_total",
		Help: "Total number of requests delayed to honour the minimum request interval",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_ratelimit_wait_seconds",
		Help:    "Time spent waiting for the minimum request interval",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Spacer enforces a minimum interval between consecutive outbound requests.
//
// The check-sleep-stamp sequence runs under a single mutex, so concurrent callers
// queue behind each other and every dispatch is at least Interval after the
// previous one.
type Spacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	waits  int64
	waited time.Duration

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger zerolog.Logger
}

// Option customises a Spacer.
type Option func(*Spacer)

// WithClock overrides the time source and sleep function, primarily for testing.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Spacer) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewSpacer creates a spacer with the given minimum interval.
// A non-positive interval disables waiting but still records dispatch times.
func NewSpacer(interval time.Duration, logger zerolog.Logger, opts ...Option) *Spacer {
	s := &Spacer{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until the minimum interval since the previous dispatch has elapsed,
// then records and returns the new dispatch time.
func (s *Spacer) Wait(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() && s.interval > 0 {
		deficit := s.last.Add(s.interval).Sub(s.now())
		if deficit > 0 {
			s.logger.Debug().
				Dur("wait", deficit).
				Msg("Waiting for request interval")

			if err := s.sleep(ctx, deficit); err != nil {
				return time.Time{}, err
			}

			s.waits++
			s.waited += deficit
			rateLimitWaitsTotal.Inc()
			rateLimitWaitSeconds.Observe(deficit.Seconds())
		}
	}

	s.last = s.now()
	return s.last, nil
}

// State returns a snapshot of the spacer state.
func (s *Spacer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Interval:     s.interval,
		LastDispatch: s.last,
		Waits:        s.waits,
		Waited:       s.waited,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
