package mirror

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/catalog-mirror/internal/config"
	"github.com/Sternrassler/catalog-mirror/internal/store"
)

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		OutputDir: dir,
		API: config.APIConfig{
			URL:     apiURL,
			Key:     "test-key",
			Timeout: 5 * time.Second,
		},
		Cache: config.CacheConfig{
			Mode:    "default",
			Store:   "default",
			Backend: config.BackendSQLite,
			MaxAge:  time.Hour,
		},
		Database: config.DatabaseConfig{Path: filepath.Join(dir, "catalog.db")},
		Bucket: config.BucketConfig{
			Path: filepath.Join(dir, "bucket.db"),
			Mode: config.BucketFilesystem,
			Dir:  dir,
		},
		Sync: config.SyncConfig{
			Games:       []int64{testGameID},
			Categories:  []int64{testCategoryID},
			PageSize:    50,
			CommitEvery: 10,
		},
		Log: config.LogConfig{Level: "info"},
	}
}

func TestOpen_SyncsIntoFiles(t *testing.T) {
	fc := newFakeCatalog(t, 100, 101)
	cfg := testConfig(t, fc.api.URL())
	cfg.Sync.DownloadMedia = true
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	s, err := Open(ctx, cfg)
	require.NoError(t, err)

	summary, err := s.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, summary.ModsNew)
	require.Equal(t, 2, summary.Assets)
	require.NoError(t, s.Shutdown())

	db, err := store.Open(store.Config{Path: cfg.Database.Path})
	require.NoError(t, err)
	defer store.CloseDB(db)

	stats, err := store.CollectStats(ctx, store.StaticConn(db))
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Mods)
	require.EqualValues(t, 4, stats.Files)
	require.Positive(t, stats.Requests)

	b, closeBucket, err := OpenBucket(ctx, cfg)
	require.NoError(t, err)
	defer closeBucket()

	bstats, err := b.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, bstats.Blobs)
	require.DirExists(t, filepath.Join(cfg.Bucket.Dir, "bucket"))
}

func TestOpen_DryRunKeepsNothing(t *testing.T) {
	fc := newFakeCatalog(t, 100)
	cfg := testConfig(t, fc.api.URL())
	cfg.DryRun = true
	cfg.Database.Path = store.MemoryPath
	cfg.Bucket.Path = store.MemoryPath
	cfg.Bucket.Mode = config.BucketInline
	cfg.Sync.DownloadFiles = true

	ctx := context.Background()
	s, err := Open(ctx, cfg)
	require.NoError(t, err)

	summary, err := s.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.ModsNew)
	require.NoError(t, s.Shutdown())

	require.NoFileExists(t, filepath.Join(cfg.OutputDir, "catalog.db"))
	require.NoDirExists(t, filepath.Join(cfg.OutputDir, "bucket"))
}

func TestOpen_RedisUnreachable(t *testing.T) {
	fc := newFakeCatalog(t)
	cfg := testConfig(t, fc.api.URL())
	cfg.Cache.Backend = config.BackendRedis
	cfg.Cache.Redis.Address = "127.0.0.1:1"

	_, err := Open(context.Background(), cfg)
	require.Error(t, err)
}

func TestOptionsFrom(t *testing.T) {
	cfg := testConfig(t, "http://localhost")
	cfg.Sync.Full = true
	cfg.Sync.StalePages = 2
	cfg.Sync.Changelogs = true

	opts := OptionsFrom(cfg)
	require.Equal(t, []int64{testGameID}, opts.Games)
	require.True(t, opts.Full)
	require.Equal(t, 2, opts.StalePages)
	require.Equal(t, time.Hour, opts.MaxAge)
	require.True(t, opts.Changelogs)
	require.False(t, opts.Descriptions)
}
