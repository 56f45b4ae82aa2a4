package bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Bucket stores assets by content hash with per-URL provenance.
type Bucket struct {
	db     *gorm.DB
	store  BlobStore
	dryRun bool
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Bucket.
type Option func(*Bucket)

// WithDryRun hashes content without storing it.
func WithDryRun(dryRun bool) Option {
	return func(b *Bucket) {
		b.dryRun = dryRun
	}
}

// New creates a bucket with metadata in db and content in store.
func New(db *gorm.DB, store BlobStore, opts ...Option) *Bucket {
	if db == nil {
		panic("bucket database cannot be nil")
	}
	if store == nil {
		store = NewInlineStore()
	}

	b := &Bucket{
		db:     db,
		store:  store,
		now:    time.Now,
		logger: log.With().Str("component", "bucket").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.dryRun {
		b.store = hashOnly{}
	}
	return b
}

// Migrate creates the blobs and provenance tables.
func (b *Bucket) Migrate(ctx context.Context) error {
	if err := b.db.WithContext(ctx).AutoMigrate(&Blob{}, &Provenance{}); err != nil {
		return fmt.Errorf("migrate bucket: %w", err)
	}
	return nil
}

// ShouldRefetch reports whether url needs downloading for a remote copy
// dated remote. Unknown URLs and missing timestamps always refetch.
func (b *Bucket) ShouldRefetch(ctx context.Context, url string, remote time.Time) (bool, error) {
	prov, err := b.Provenance(ctx, url)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return true, nil
		}
		return false, err
	}

	if prov.FetchedAt.IsZero() || remote.IsZero() {
		return true, nil
	}
	return prov.FetchedAt.Before(remote), nil
}

// Provenance returns the provenance row for url.
func (b *Bucket) Provenance(ctx context.Context, url string) (*Provenance, error) {
	var prov Provenance
	err := b.db.WithContext(ctx).Where("url = ?", url).Take(&prov).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no provenance for %s", ErrBlobNotFound, url)
		}
		return nil, fmt.Errorf("select provenance: %w", err)
	}
	return &prov, nil
}

// Ingest stores the content of r for src and returns its hash. Storing the
// same content again overwrites the blob row without duplicating storage.
func (b *Bucket) Ingest(ctx context.Context, src Source, r io.Reader) (string, error) {
	written, err := b.store.Write(r)
	if err != nil {
		return "", err
	}
	bytesTotal.Add(float64(written.Length))

	if src.Length > 0 && src.Length != written.Length {
		b.logger.Warn().
			Str("url", src.URL).
			Int64("expected", src.Length).
			Int64("got", written.Length).
			Msg("Asset length differs from announced length")
	}

	stamp := src.Timestamp
	if stamp.IsZero() {
		stamp = b.now()
	}

	blob := Blob{
		Hash:       written.Hash,
		Length:     written.Length,
		Filename:   src.DisplayName,
		StoredPath: written.StoredPath,
		Data:       written.Data,
	}
	prov := Provenance{
		URL:         src.URL,
		LogicalID:   src.LogicalID,
		DisplayName: src.DisplayName,
		FetchedAt:   stamp.UTC(),
		Hash:        written.Hash,
	}

	existed := written.Existed
	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !existed {
			var n int64
			if err := tx.Model(&Blob{}).Where("hash = ?", blob.Hash).Count(&n).Error; err != nil {
				return err
			}
			existed = n > 0
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&blob).Error; err != nil {
			return fmt.Errorf("upsert blob: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&prov).Error; err != nil {
			return fmt.Errorf("upsert provenance: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if existed {
		dedupTotal.Inc()
	}
	ingestedTotal.Inc()

	b.logger.Debug().
		Str("url", src.URL).
		Str("hash", written.Hash).
		Int64("length", written.Length).
		Bool("dedup", existed).
		Msg("Ingested asset")

	return written.Hash, nil
}

// Exists reports whether a blob is stored for hash.
func (b *Bucket) Exists(ctx context.Context, hash string) (bool, error) {
	var n int64
	if err := b.db.WithContext(ctx).Model(&Blob{}).Where("hash = ?", hash).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count blobs: %w", err)
	}
	return n > 0, nil
}

// Open returns the content stored for hash.
func (b *Bucket) Open(ctx context.Context, hash string) (io.ReadCloser, error) {
	var blob Blob
	err := b.db.WithContext(ctx).Where("hash = ?", hash).Take(&blob).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, hash)
		}
		return nil, fmt.Errorf("select blob: %w", err)
	}
	return b.store.Open(&blob)
}

// Stats returns counts and total stored bytes.
func (b *Bucket) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	db := b.db.WithContext(ctx)

	if err := db.Model(&Blob{}).Count(&stats.Blobs).Error; err != nil {
		return stats, fmt.Errorf("count blobs: %w", err)
	}
	if err := db.Model(&Provenance{}).Count(&stats.Provenance).Error; err != nil {
		return stats, fmt.Errorf("count provenance: %w", err)
	}
	if err := db.Model(&Blob{}).Select("COALESCE(SUM(length), 0)").Scan(&stats.Bytes).Error; err != nil {
		return stats, fmt.Errorf("sum blob length: %w", err)
	}
	return stats, nil
}
