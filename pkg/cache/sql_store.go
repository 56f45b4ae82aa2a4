package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// APIRequest is the api_requests row behind SQLStore.
type APIRequest struct {
	ID        uint           `gorm:"primaryKey"`
	URL       string         `gorm:"index;not null"`
	FetchedAt time.Time      `gorm:"index"`
	Payload   datatypes.JSON `gorm:"type:json"`
}

// TableName pins the table name.
func (APIRequest) TableName() string {
	return "api_requests"
}

// Conn hands out the database handle for the current unit of work. The
// entity store implements it so cache writes land in its open transaction.
type Conn interface {
	DB(ctx context.Context) *gorm.DB
}

type staticConn struct {
	db *gorm.DB
}

func (c staticConn) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

// StaticConn wraps a plain *gorm.DB as a Conn.
func StaticConn(db *gorm.DB) Conn {
	return staticConn{db: db}
}

// SQLStore is an EntryStore backed by gorm.
type SQLStore struct {
	conn Conn
}

// NewSQLStore creates a store on conn.
func NewSQLStore(conn Conn) *SQLStore {
	if conn == nil {
		panic("sql store connection cannot be nil")
	}
	return &SQLStore{conn: conn}
}

// Migrate creates the api_requests table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := s.conn.DB(ctx).AutoMigrate(&APIRequest{}); err != nil {
		return fmt.Errorf("migrate api_requests: %w", err)
	}
	return nil
}

// Get returns the newest entry for key.
func (s *SQLStore) Get(ctx context.Context, key string) (*Entry, error) {
	var row APIRequest
	err := s.conn.DB(ctx).
		Where("url = ?", key).
		Order("fetched_at DESC").
		Order("id DESC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("select api_request: %w", err)
	}

	entry := &Entry{
		URL:       row.URL,
		Payload:   []byte(row.Payload),
		FetchedAt: row.FetchedAt,
	}
	if !entry.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEntry, key)
	}
	return entry, nil
}

// Put stores entry, replacing older rows for the URL when replace is set.
func (s *SQLStore) Put(ctx context.Context, entry *Entry, replace bool) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	row := APIRequest{
		URL:       entry.URL,
		FetchedAt: entry.FetchedAt.UTC(),
		Payload:   datatypes.JSON(entry.Payload),
	}

	err := s.conn.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if replace {
			if err := tx.Where("url = ?", entry.URL).Delete(&APIRequest{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("store api_request: %w", err)
	}
	return nil
}

// LastFetched returns the newest fetch time for key.
func (s *SQLStore) LastFetched(ctx context.Context, key string) (time.Time, error) {
	var row APIRequest
	err := s.conn.DB(ctx).
		Select("fetched_at").
		Where("url = ?", key).
		Order("fetched_at DESC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		CacheErrors.WithLabelValues("last_fetched").Inc()
		return time.Time{}, fmt.Errorf("select fetched_at: %w", err)
	}
	return row.FetchedAt, nil
}

// Exists reports whether an entry is stored for key.
func (s *SQLStore) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	if err := s.conn.DB(ctx).Model(&APIRequest{}).Where("url = ?", key).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count api_requests: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of stored rows.
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn.DB(ctx).Model(&APIRequest{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count api_requests: %w", err)
	}
	return n, nil
}
