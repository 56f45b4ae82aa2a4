// Package mirror drives incremental syncs of the catalog into the local
// store: games, then categories, then mods with their files and assets.
//
// Every write happens inside a unit of work guarded by Guard. A unit is one
// listing page or one mod with its whole file set. Cancelling the context
// passed to Run stops the sync at the next unit boundary; the unit in flight
// runs to completion with a detached context so it is never split.
package mirror

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/Sternrassler/catalog-mirror/internal/catalog"
	"github.com/Sternrassler/catalog-mirror/internal/store"
	"github.com/Sternrassler/catalog-mirror/pkg/bucket"
	"github.com/Sternrassler/catalog-mirror/pkg/cache"
	"github.com/Sternrassler/catalog-mirror/pkg/pagination"
)

// Options selects what a sync mirrors.
type Options struct {
	// Games whose categories and mods are mirrored. Empty means all.
	// Every game in the listing is stored either way.
	Games []int64

	// Categories whose mods are mirrored. Empty means all.
	Categories []int64

	// Full rescans mod listings from the API and disables early stop.
	Full bool

	PageSize int

	// StalePages ends a mod listing after this many consecutive pages with no
	// changed mod. Zero disables early stop.
	StalePages int

	// MaxAge is how long a cached listing page stays usable.
	MaxAge time.Duration

	Descriptions  bool
	Changelogs    bool
	GameVersions  bool
	DownloadMedia bool
	DownloadFiles bool
}

// Syncer runs syncs against one store. Run and Shutdown may be called from
// different goroutines; Run itself is not reentrant.
type Syncer struct {
	getter     pagination.Getter
	session    *store.Session
	games      *store.Repository[catalog.Game]
	categories *store.Repository[catalog.Category]
	mods       *store.Repository[catalog.Mod]
	files      *store.Repository[catalog.File]
	downloader *bucket.Downloader
	opts       Options

	guard   Guard
	closed  atomic.Bool
	closers []func() error

	shutdownOnce sync.Once
	shutdownErr  error

	mu      sync.Mutex
	summary Summary

	logger zerolog.Logger
}

// New creates a Syncer. downloader may be nil when no assets are mirrored.
func New(getter pagination.Getter, session *store.Session, downloader *bucket.Downloader, opts Options) *Syncer {
	if getter == nil {
		panic("mirror getter cannot be nil")
	}
	if session == nil {
		panic("mirror session cannot be nil")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = pagination.DefaultPageSize
	}
	if opts.StalePages < 0 {
		opts.StalePages = 0
	}

	return &Syncer{
		getter:     getter,
		session:    session,
		games:      store.NewGames(session),
		categories: store.NewCategories(session),
		mods:       store.NewMods(session),
		files:      store.NewFiles(session),
		downloader: downloader,
		opts:       opts,
		logger:     log.With().Str("component", "mirror").Logger(),
	}
}

// OnShutdown registers fn to run during Shutdown after the session is
// closed. Functions run in reverse registration order.
func (s *Syncer) OnShutdown(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Busy reports whether a unit of work is in flight.
func (s *Syncer) Busy() bool {
	return s.guard.Busy()
}

// Summary returns the counters of the current or last run.
func (s *Syncer) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Run performs one sync pass. On cancellation it returns an error wrapping
// ErrInterrupted; committed work is kept and the next run picks up from it.
func (s *Syncer) Run(ctx context.Context) (Summary, error) {
	if s.closed.Load() {
		return Summary{}, ErrClosed
	}

	started := time.Now()
	s.mu.Lock()
	s.summary = Summary{Started: started}
	s.mu.Unlock()

	s.logger.Info().
		Ints64("games", s.opts.Games).
		Ints64("categories", s.opts.Categories).
		Bool("full", s.opts.Full).
		Int("stale_pages", s.opts.StalePages).
		Msg("Starting sync")

	err := s.run(ctx)
	if !errors.Is(err, ErrClosed) {
		err = multierr.Append(err, s.unit(ctx, func(context.Context) error {
			return s.session.Commit()
		}))
	}

	elapsed := time.Since(started)
	s.record(func(sum *Summary) { sum.Duration = elapsed })
	runDuration.Observe(elapsed.Seconds())

	summary := s.Summary()
	switch {
	case err == nil:
		runsTotal.WithLabelValues("ok").Inc()
		s.logger.Info().EmbedObject(summary).Msg("Sync finished")
	case errors.Is(err, ErrInterrupted), errors.Is(err, ErrClosed):
		runsTotal.WithLabelValues("interrupted").Inc()
		s.logger.Warn().EmbedObject(summary).Msg("Sync interrupted")
	default:
		runsTotal.WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).EmbedObject(summary).Msg("Sync failed")
	}
	return summary, err
}

func (s *Syncer) run(ctx context.Context) error {
	games, err := s.SyncGames(ctx)
	if err != nil {
		return err
	}
	categories, err := s.SyncCategories(ctx, games)
	if err != nil {
		return err
	}
	return s.SyncMods(ctx, categories)
}

// Shutdown waits for the unit in flight, commits and closes the store, then
// runs the OnShutdown functions. Errors are combined. Calling it again
// returns the first result.
func (s *Syncer) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.guard.Do(func() error {
			s.closed.Store(true)

			err := s.session.Close()
			for i := len(s.closers) - 1; i >= 0; i-- {
				err = multierr.Append(err, s.closers[i]())
			}
			s.shutdownErr = err
			return nil
		})

		if s.shutdownErr != nil {
			s.logger.Error().Err(s.shutdownErr).Msg("Shutdown finished with errors")
		} else {
			s.logger.Info().Msg("Shutdown complete")
		}
	})
	return s.shutdownErr
}

// unit runs fn as one unit of work. fn gets a context that is never
// cancelled, so an interruption cannot split it.
func (s *Syncer) unit(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.guard.Do(func() error {
		if s.closed.Load() {
			return ErrClosed
		}
		return fn(context.WithoutCancel(ctx))
	})
}

// eachPage walks d and hands every page to fn until the walk ends, fn asks
// to stop or ctx is cancelled. A walk ended by a failed request is logged and
// is not an error.
func (s *Syncer) eachPage(ctx context.Context, d *pagination.Depaginator, fn func(page *pagination.Page) (stop bool, err error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return interrupted(err)
		}

		var page *pagination.Page
		var ok bool
		err := s.unit(ctx, func(ctx context.Context) error {
			page, ok = d.Next(ctx)
			return nil
		})
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		s.record(func(sum *Summary) { sum.Pages++ })

		stop, err := fn(page)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}

	if err := d.Err(); err != nil {
		s.record(func(sum *Summary) { sum.ListingFailures++ })
		s.logger.Warn().Err(err).Str("url", d.URL()).Msg("Listing ended early")
	}
	return nil
}

func (s *Syncer) record(fn func(sum *Summary)) {
	s.mu.Lock()
	fn(&s.summary)
	s.mu.Unlock()
}

// listing returns the walk parameters for a listing endpoint.
func (s *Syncer) listing() pagination.Config {
	return pagination.Config{
		PageSize: s.opts.PageSize,
		Write:    true,
		UseLocal: true,
		MaxAge:   s.opts.MaxAge,
	}
}

// cached returns the cache hints for lookups that may be served from cache.
func (s *Syncer) cached() cache.Options {
	return cache.Options{Write: true, UseLocal: true, MaxAge: s.opts.MaxAge}
}

// fresh returns the cache hints for lookups whose cached copy is known to be
// outdated, i.e. data belonging to an entity that just changed.
func (s *Syncer) fresh() cache.Options {
	return cache.Options{Write: true, UseLocal: true, MaxAge: 0}
}

func (s *Syncer) wantGame(id int64) bool {
	return len(s.opts.Games) == 0 || slices.Contains(s.opts.Games, id)
}

func (s *Syncer) wantCategory(id int64) bool {
	return len(s.opts.Categories) == 0 || slices.Contains(s.opts.Categories, id)
}

// decodePage decodes the records of a listing page.
func decodePage[T catalog.Record](page *pagination.Page) ([]catalog.Item[T], error) {
	raw, err := page.Items()
	if err != nil {
		return nil, err
	}
	return catalog.DecodeItems[T](raw)
}

// decodeSingle decodes the record of a single-record response.
func decodeSingle[T catalog.Record](page *pagination.Page) (catalog.Item[T], error) {
	rec, err := pagination.DecodeOne[T](page)
	if err != nil {
		return catalog.Item[T]{}, err
	}
	return catalog.Item[T]{Record: rec, Raw: page.Data}, nil
}
