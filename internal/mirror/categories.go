package mirror

import (
	"context"

	"github.com/Sternrassler/catalog-mirror/internal/catalog"
	"github.com/Sternrassler/catalog-mirror/pkg/pagination"
)

// SyncCategories stores the categories of games and returns the ones whose
// mods are to be mirrored.
func (s *Syncer) SyncCategories(ctx context.Context, games []catalog.Game) ([]catalog.Category, error) {
	var selected []catalog.Category

	for _, game := range games {
		s.logger.Info().Int64("game_id", game.ID).Msg("Syncing categories")

		d := pagination.New(s.getter, catalog.CategoriesPath(game.ID), s.listing())
		err := s.eachPage(ctx, d, func(page *pagination.Page) (bool, error) {
			items, err := decodePage[catalog.Category](page)
			if err != nil {
				s.logger.Warn().Err(err).Str("url", page.SourceURL).Msg("Skipping undecodable categories page")
				return true, nil
			}

			err = s.unit(ctx, func(ctx context.Context) error {
				for _, item := range items {
					if err := s.categories.Put(ctx, item); err != nil {
						return err
					}
				}
				return s.session.Checkpoint()
			})
			if err != nil {
				return false, err
			}

			s.record(func(sum *Summary) { sum.Categories += len(items) })
			entitiesTotal.WithLabelValues(kindCategory, "stored").Add(float64(len(items)))

			for _, item := range items {
				if !s.wantCategory(item.Record.ID) {
					continue
				}
				category := item.Record
				if category.GameID == 0 {
					category.GameID = game.ID
				}
				selected = append(selected, category)
			}
			return false, nil
		})
		if err != nil {
			return selected, err
		}
	}

	s.logger.Info().Int("selected", len(selected)).Msg("Categories listed")
	return selected, nil
}
