package mirror

import (
	"context"

	"github.com/Sternrassler/catalog-mirror/internal/catalog"
	"github.com/Sternrassler/catalog-mirror/pkg/pagination"
)

// SyncGames stores every game of the games listing and refreshes the details
// of the selected ones. It returns the selected games.
func (s *Syncer) SyncGames(ctx context.Context) ([]catalog.Game, error) {
	s.logger.Info().Msg("Syncing games")

	var selected []catalog.Game
	d := pagination.New(s.getter, catalog.GamesPath(), s.listing())

	err := s.eachPage(ctx, d, func(page *pagination.Page) (bool, error) {
		items, err := decodePage[catalog.Game](page)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", page.SourceURL).Msg("Skipping undecodable games page")
			return true, nil
		}

		err = s.unit(ctx, func(ctx context.Context) error {
			for _, item := range items {
				if err := s.games.Put(ctx, item); err != nil {
					return err
				}
			}
			return s.session.Checkpoint()
		})
		if err != nil {
			return false, err
		}

		s.record(func(sum *Summary) { sum.Games += len(items) })
		entitiesTotal.WithLabelValues(kindGame, "stored").Add(float64(len(items)))

		for _, item := range items {
			if s.wantGame(item.Record.ID) {
				selected = append(selected, item.Record)
			}
		}
		return false, nil
	})
	if err != nil {
		return selected, err
	}

	s.logger.Info().Int("selected", len(selected)).Msg("Games listed")

	for _, game := range selected {
		if err := ctx.Err(); err != nil {
			return selected, interrupted(err)
		}
		if err := s.unit(ctx, func(ctx context.Context) error {
			return s.syncGame(ctx, game)
		}); err != nil {
			return selected, err
		}
	}
	return selected, nil
}

// syncGame stores the detailed record of game and, when enabled, caches its
// version list. A failed lookup skips the game.
func (s *Syncer) syncGame(ctx context.Context, game catalog.Game) error {
	logger := s.logger.With().Int64("game_id", game.ID).Str("game", game.Name).Logger()
	logger.Info().Msg("Processing game")

	path := catalog.GamePath(game.ID)
	payload, err := s.getter.GetJSON(ctx, path, s.cached())
	if err != nil {
		entitiesTotal.WithLabelValues(kindGame, "failed").Inc()
		logger.Warn().Err(err).Msg("Skipping game, lookup failed")
		return nil
	}

	page, err := pagination.ParsePage(payload, path)
	if err == nil {
		var item catalog.Item[catalog.Game]
		item, err = decodeSingle[catalog.Game](page)
		if err == nil {
			if err := s.games.Put(ctx, item); err != nil {
				return err
			}
		}
	}
	if err != nil {
		entitiesTotal.WithLabelValues(kindGame, "failed").Inc()
		logger.Warn().Err(err).Msg("Skipping game, undecodable details")
		return nil
	}

	if s.opts.GameVersions {
		if _, err := s.getter.GetJSON(ctx, catalog.GameVersionsPath(game.ID), s.cached()); err != nil {
			logger.Warn().Err(err).Msg("Failed to fetch game versions")
		}
	}

	return s.session.Checkpoint()
}
