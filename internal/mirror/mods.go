package mirror

import (
	"context"

	"github.com/Sternrassler/catalog-mirror/internal/catalog"
	"github.com/Sternrassler/catalog-mirror/pkg/bucket"
	"github.com/Sternrassler/catalog-mirror/pkg/pagination"
	"github.com/Sternrassler/catalog-mirror/pkg/staleness"
)

// SyncMods walks the mod listing of every category and mirrors each mod
// that is new or modified since it was stored.
func (s *Syncer) SyncMods(ctx context.Context, categories []catalog.Category) error {
	for _, category := range categories {
		if err := s.syncCategoryMods(ctx, category); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) syncCategoryMods(ctx context.Context, category catalog.Category) error {
	logger := s.logger.With().
		Int64("game_id", category.GameID).
		Int64("category_id", category.ID).
		Str("category", category.Name).
		Logger()
	logger.Info().Msg("Processing category")

	threshold := s.opts.StalePages
	cfg := s.listing()
	if s.opts.Full {
		threshold = 0
		cfg.UseLocal = false
	}
	run := staleness.NewRun(threshold)

	d := pagination.New(s.getter, catalog.ModSearchPath(category.GameID, category.ID), cfg)
	return s.eachPage(ctx, d, func(page *pagination.Page) (bool, error) {
		items, err := decodePage[catalog.Mod](page)
		if err != nil {
			logger.Warn().Err(err).Str("url", page.SourceURL).Msg("Skipping undecodable mods page")
			return true, nil
		}

		newer := 0
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return false, interrupted(err)
			}

			var changed bool
			err := s.unit(ctx, func(ctx context.Context) error {
				stored, known, err := s.mods.Modified(ctx, item.Record.ID)
				if err != nil {
					logger.Warn().Err(err).Int64("mod_id", item.Record.ID).Msg("Cannot read stored mod, treating as changed")
					known = false
				}
				changed = s.opts.Full || staleness.Changed(item.Record, stored, known)
				if !changed {
					return nil
				}
				return s.syncMod(ctx, item, known)
			})
			if err != nil {
				return false, err
			}

			if changed {
				newer++
			} else {
				s.record(func(sum *Summary) { sum.ModsSkipped++ })
				entitiesTotal.WithLabelValues(kindMod, "unchanged").Inc()
			}
		}

		if run.Observe(newer) {
			s.record(func(sum *Summary) { sum.EarlyStops++ })
			logger.Info().
				Int("unchanged_pages", run.Consecutive()).
				Str("url", page.SourceURL).
				Msg("No changes in recent pages, stopping listing")
			return true, nil
		}
		return false, nil
	})
}

// syncMod mirrors one changed mod: its complete file listing, then the
// optional description and media, then the mod row itself. The row is
// written last so a mod whose files could not be listed is retried next run.
func (s *Syncer) syncMod(ctx context.Context, item catalog.Item[catalog.Mod], known bool) error {
	mod := item.Record
	logger := s.logger.With().Int64("mod_id", mod.ID).Str("mod", mod.Slug).Logger()

	complete, err := s.syncFiles(ctx, mod)
	if err != nil {
		return err
	}
	if !complete {
		s.record(func(sum *Summary) { sum.ModsFailed++ })
		entitiesTotal.WithLabelValues(kindMod, "failed").Inc()
		logger.Warn().Msg("File listing incomplete, leaving mod for the next run")
		return s.session.Checkpoint()
	}

	if s.opts.Descriptions {
		if _, err := s.getter.GetJSON(ctx, catalog.ModDescriptionPath(mod.ID), s.fresh()); err != nil {
			logger.Warn().Err(err).Msg("Failed to fetch description")
		}
	}

	if s.opts.DownloadMedia && s.downloader != nil {
		stamp := catalog.Timestamp(mod)
		for _, asset := range mod.Media() {
			s.mirror(ctx, bucket.Source{
				URL:         asset.URL,
				LogicalID:   asset.ID,
				DisplayName: asset.Title,
				Timestamp:   stamp,
			})
		}
	}

	if err := s.mods.Put(ctx, item); err != nil {
		return err
	}

	outcome := "new"
	if known {
		outcome = "updated"
		s.record(func(sum *Summary) { sum.ModsUpdated++ })
	} else {
		s.record(func(sum *Summary) { sum.ModsNew++ })
	}
	entitiesTotal.WithLabelValues(kindMod, outcome).Inc()
	logger.Debug().Str("outcome", outcome).Str("modified", mod.DateModified).Msg("Mod stored")

	return s.session.Checkpoint()
}

// syncFiles stores every file of mod. The listing is always refetched since
// the mod changed. It reports false when the listing ended on a failure.
func (s *Syncer) syncFiles(ctx context.Context, mod catalog.Mod) (bool, error) {
	cfg := s.listing()
	cfg.MaxAge = 0
	d := pagination.New(s.getter, catalog.ModFilesPath(mod.ID), cfg)

	for page, ok := d.Next(ctx); ok; page, ok = d.Next(ctx) {
		s.record(func(sum *Summary) { sum.Pages++ })

		items, err := decodePage[catalog.File](page)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", page.SourceURL).Msg("Undecodable files page")
			return false, nil
		}

		for _, item := range items {
			if err := s.syncFile(ctx, mod, item); err != nil {
				return false, err
			}
		}
	}

	return d.Err() == nil, nil
}

func (s *Syncer) syncFile(ctx context.Context, mod catalog.Mod, item catalog.Item[catalog.File]) error {
	file := item.Record

	known, err := s.files.Exists(ctx, file.ID)
	if err != nil {
		return err
	}
	if err := s.files.Put(ctx, item); err != nil {
		return err
	}
	s.record(func(sum *Summary) { sum.Files++ })
	entitiesTotal.WithLabelValues(kindFile, "stored").Inc()

	// Files do not change once uploaded, so their changelog is fetched once.
	if s.opts.Changelogs && !known {
		if _, err := s.getter.GetJSON(ctx, catalog.FileChangelogPath(mod.ID, file.ID), s.cached()); err != nil {
			s.logger.Warn().Err(err).Int64("file_id", file.ID).Msg("Failed to fetch changelog")
		}
	}

	if s.opts.DownloadFiles && s.downloader != nil {
		s.mirror(ctx, bucket.Source{
			URL:         file.DownloadURL,
			LogicalID:   file.ID,
			DisplayName: file.FileName,
			Length:      file.FileLength,
			Timestamp:   catalog.Timestamp(file),
		})
	}
	return nil
}

// mirror hands one asset to the downloader. Failures are logged there and
// never end the mod.
func (s *Syncer) mirror(ctx context.Context, src bucket.Source) {
	if _, ok := s.downloader.Mirror(ctx, src); ok {
		s.record(func(sum *Summary) { sum.Assets++ })
		entitiesTotal.WithLabelValues(kindAsset, "mirrored").Inc()
	}
}
