package mirror

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Sternrassler/catalog-mirror/internal/config"
	"github.com/Sternrassler/catalog-mirror/internal/store"
	"github.com/Sternrassler/catalog-mirror/pkg/bucket"
	"github.com/Sternrassler/catalog-mirror/pkg/cache"
	"github.com/Sternrassler/catalog-mirror/pkg/client"
)

// OptionsFrom extracts the sync options from cfg.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Games:         cfg.Sync.Games,
		Categories:    cfg.Sync.Categories,
		Full:          cfg.Sync.Full,
		PageSize:      cfg.Sync.PageSize,
		StalePages:    cfg.Sync.StalePages,
		MaxAge:        cfg.Cache.MaxAge,
		Descriptions:  cfg.Sync.Descriptions,
		Changelogs:    cfg.Sync.Changelogs,
		GameVersions:  cfg.Sync.GameVersions,
		DownloadMedia: cfg.Sync.DownloadMedia,
		DownloadFiles: cfg.Sync.DownloadFiles,
	}
}

// Open builds a Syncer from cfg: API client, request cache, entity store and,
// when assets are mirrored, the file bucket. cfg must be validated. Everything
// opened here is released by Shutdown.
func Open(ctx context.Context, cfg *config.Config) (s *Syncer, err error) {
	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				err = multierr.Append(err, closers[i]())
			}
		}
	}()

	db, err := store.Open(store.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() error { return store.CloseDB(db) })
	if err := store.Migrate(db); err != nil {
		return nil, err
	}

	apiClient, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}
	closers = append(closers, apiClient.Close)

	session := store.NewSession(db, cfg.Sync.CommitEvery)

	entries, closeEntries, err := openEntryStore(ctx, cfg, db, session)
	if err != nil {
		return nil, err
	}
	if closeEntries != nil {
		closers = append(closers, closeEntries)
	}

	manager, err := cache.NewManager(apiClient, entries, cfg.CacheModes())
	if err != nil {
		return nil, fmt.Errorf("create cache manager: %w", err)
	}

	var downloader *bucket.Downloader
	if cfg.Sync.DownloadMedia || cfg.Sync.DownloadFiles {
		b, closeBucket, err := OpenBucket(ctx, cfg)
		if err != nil {
			return nil, err
		}
		closers = append(closers, closeBucket)
		downloader = bucket.NewDownloader(b, nil, cfg.API.UserAgent)
	}

	s = New(manager, session, downloader, OptionsFrom(cfg))
	// The session closes db itself.
	for _, fn := range closers[1:] {
		s.OnShutdown(fn)
	}
	return s, nil
}

// openEntryStore returns the cache backend. The SQL store shares the sync
// session so cache writes commit together with the entities they produced.
func openEntryStore(ctx context.Context, cfg *config.Config, db *gorm.DB, session *store.Session) (cache.EntryStore, func() error, error) {
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Cache.Redis.Address, err)
		}
		return cache.NewRedisStore(rdb, cfg.Cache.Redis.Prefix, cfg.Cache.Redis.TTL), rdb.Close, nil
	default:
		if err := cache.NewSQLStore(cache.StaticConn(db)).Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return cache.NewSQLStore(session), nil, nil
	}
}

// OpenBucket opens the file bucket described by cfg. The returned function
// closes its database.
func OpenBucket(ctx context.Context, cfg *config.Config) (*bucket.Bucket, func() error, error) {
	db, err := store.Open(store.Config{Path: cfg.Bucket.Path})
	if err != nil {
		return nil, nil, fmt.Errorf("open bucket: %w", err)
	}
	closeDB := func() error { return store.CloseDB(db) }

	var blobs bucket.BlobStore
	if cfg.Bucket.Mode == config.BucketFilesystem {
		blobs = bucket.NewFSStore(afero.NewOsFs(), cfg.Bucket.Dir)
	}

	b := bucket.New(db, blobs, bucket.WithDryRun(cfg.DryRun))
	if err := b.Migrate(ctx); err != nil {
		return nil, nil, multierr.Append(err, closeDB())
	}
	return b, closeDB, nil
}
