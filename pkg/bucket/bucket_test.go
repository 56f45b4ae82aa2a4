package bucket

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newTestBucket(t *testing.T, store BlobStore, opts ...Option) *Bucket {
	t.Helper()
	b := New(openTestDB(t), store, opts...)
	require.NoError(t, b.Migrate(context.Background()))
	return b
}

func md5Hex(data string) string {
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestShardPath(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef"
	require.Equal(t, "bucket/01/23/45/"+hash, ShardPath(hash))
}

func TestBucket_DedupAcrossURLs(t *testing.T) {
	stores := map[string]func() BlobStore{
		"inline":     func() BlobStore { return NewInlineStore() },
		"filesystem": func() BlobStore { return NewFSStore(afero.NewMemMapFs(), "/data") },
	}

	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			b := newTestBucket(t, mk())
			ctx := context.Background()
			content := "identical asset bytes"

			h1, err := b.Ingest(ctx, Source{URL: "https://cdn.example.com/a.png", LogicalID: 1}, strings.NewReader(content))
			require.NoError(t, err)
			h2, err := b.Ingest(ctx, Source{URL: "https://cdn.example.com/b.png", LogicalID: 2}, strings.NewReader(content))
			require.NoError(t, err)

			require.Equal(t, h1, h2)
			require.Equal(t, md5Hex(content), h1)

			stats, err := b.Stats(ctx)
			require.NoError(t, err)
			require.EqualValues(t, 1, stats.Blobs)
			require.EqualValues(t, 2, stats.Provenance)
			require.EqualValues(t, len(content), stats.Bytes)

			rc, err := b.Open(ctx, h1)
			require.NoError(t, err)
			require.Equal(t, content, readAll(t, rc))
		})
	}
}

func TestBucket_ShouldRefetch(t *testing.T) {
	b := newTestBucket(t, NewInlineStore())
	ctx := context.Background()
	stored := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	refetch, err := b.ShouldRefetch(ctx, "https://cdn.example.com/file.jar", stored)
	require.NoError(t, err)
	require.True(t, refetch, "unknown url")

	_, err = b.Ingest(ctx, Source{URL: "https://cdn.example.com/file.jar", Timestamp: stored}, strings.NewReader("jar"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote time.Time
		want   bool
	}{
		{name: "equal", remote: stored, want: false},
		{name: "older", remote: stored.Add(-time.Hour), want: false},
		{name: "newer", remote: stored.Add(time.Second), want: true},
		{name: "remote unknown", remote: time.Time{}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.ShouldRefetch(ctx, "https://cdn.example.com/file.jar", tt.remote)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBucket_ReingestUpdatesProvenance(t *testing.T) {
	b := newTestBucket(t, NewInlineStore())
	ctx := context.Background()
	url := "https://cdn.example.com/logo.png"

	first, err := b.Ingest(ctx, Source{URL: url, DisplayName: "logo v1", Timestamp: time.Unix(100, 0)}, strings.NewReader("v1"))
	require.NoError(t, err)
	second, err := b.Ingest(ctx, Source{URL: url, DisplayName: "logo v2", Timestamp: time.Unix(200, 0)}, strings.NewReader("v2"))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	prov, err := b.Provenance(ctx, url)
	require.NoError(t, err)
	require.Equal(t, second, prov.Hash)
	require.Equal(t, "logo v2", prov.DisplayName)
	require.True(t, prov.FetchedAt.Equal(time.Unix(200, 0)))

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Blobs, "old content stays addressable")
	require.EqualValues(t, 1, stats.Provenance)
}

func TestBucket_OpenMissing(t *testing.T) {
	b := newTestBucket(t, NewInlineStore())

	_, err := b.Open(context.Background(), md5Hex("nothing"))
	require.ErrorIs(t, err, ErrBlobNotFound)

	exists, err := b.Exists(context.Background(), md5Hex("nothing"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestFSStore_LayoutAndStageCleanup(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := newTestBucket(t, NewFSStore(fs, "/data"))
	ctx := context.Background()
	content := strings.Repeat("x", 200*1024)

	hash, err := b.Ingest(ctx, Source{URL: "https://cdn.example.com/big.zip"}, strings.NewReader(content))
	require.NoError(t, err)

	exists, err := afero.Exists(fs, "/data/"+ShardPath(hash))
	require.NoError(t, err)
	require.True(t, exists)

	staged, err := afero.ReadDir(fs, "/data/stage")
	require.NoError(t, err)
	require.Empty(t, staged, "stage directory is emptied after finalize")

	// Same content again leaves no staging file and a single blob file.
	_, err = b.Ingest(ctx, Source{URL: "https://mirror.example.com/big.zip"}, strings.NewReader(content))
	require.NoError(t, err)
	staged, err = afero.ReadDir(fs, "/data/stage")
	require.NoError(t, err)
	require.Empty(t, staged)
}

type failingReader struct {
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestFSStore_FailureRemovesStage(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := newTestBucket(t, NewFSStore(fs, "/data"))
	ctx := context.Background()

	_, err := b.Ingest(ctx, Source{URL: "https://cdn.example.com/broken.zip"}, &failingReader{})
	require.Error(t, err)

	staged, err := afero.ReadDir(fs, "/data/stage")
	require.NoError(t, err)
	require.Empty(t, staged)

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Blobs)
	require.Zero(t, stats.Provenance)
}

func TestBucket_DryRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := newTestBucket(t, NewFSStore(fs, "/data"), WithDryRun(true))
	ctx := context.Background()

	hash, err := b.Ingest(ctx, Source{URL: "https://cdn.example.com/a.png"}, bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	require.Equal(t, md5Hex("png"), hash)

	exists, err := afero.DirExists(fs, "/data/bucket")
	require.NoError(t, err)
	require.False(t, exists, "dry run writes no blobs")
}
