package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/catalog-mirror/internal/catalog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Conn hands out the handle for the current unit of work. *Session
// implements it.
type Conn interface {
	DB(ctx context.Context) *gorm.DB
}

// Repository reads and writes one kind of catalog record.
type Repository[T catalog.Record] struct {
	conn  Conn
	table string
	toRow func(catalog.Item[T]) (any, error)
}

// NewGames returns the games repository.
func NewGames(conn Conn) *Repository[catalog.Game] {
	return &Repository[catalog.Game]{conn: conn, table: "games", toRow: gameRow}
}

// NewCategories returns the categories repository.
func NewCategories(conn Conn) *Repository[catalog.Category] {
	return &Repository[catalog.Category]{conn: conn, table: "categories", toRow: categoryRow}
}

// NewMods returns the mods repository.
func NewMods(conn Conn) *Repository[catalog.Mod] {
	return &Repository[catalog.Mod]{conn: conn, table: "mods", toRow: modRow}
}

// NewFiles returns the files repository.
func NewFiles(conn Conn) *Repository[catalog.File] {
	return &Repository[catalog.File]{conn: conn, table: "files", toRow: fileRow}
}

// Table returns the table name.
func (r *Repository[T]) Table() string {
	return r.table
}

// Put inserts or replaces the record.
func (r *Repository[T]) Put(ctx context.Context, item catalog.Item[T]) error {
	row, err := r.toRow(item)
	if err != nil {
		return err
	}
	err = r.conn.DB(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
	if err != nil {
		return fmt.Errorf("upsert %s %d: %w", r.table, item.Record.RecordID(), err)
	}
	return nil
}

// Exists reports whether a record with id is stored.
func (r *Repository[T]) Exists(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := r.conn.DB(ctx).Table(r.table).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count %s: %w", r.table, err)
	}
	return n > 0, nil
}

// Get returns the stored record with id.
func (r *Repository[T]) Get(ctx context.Context, id int64) (T, bool, error) {
	var rec T
	var data []byte

	err := r.conn.DB(ctx).Table(r.table).Select("json").Where("id = ?", id).Limit(1).Row().Scan(&data)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isNoRows(err) {
			return rec, false, nil
		}
		return rec, false, fmt.Errorf("select %s %d: %w", r.table, id, err)
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false, fmt.Errorf("decode %s %d: %w", r.table, id, err)
	}
	return rec, true, nil
}

// Modified returns the stored modification timestamp of id.
func (r *Repository[T]) Modified(ctx context.Context, id int64) (string, bool, error) {
	rec, ok, err := r.Get(ctx, id)
	if err != nil || !ok {
		return "", ok, err
	}
	return rec.ModifiedAt(), true, nil
}

// Count returns the number of stored records.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.conn.DB(ctx).Table(r.table).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return n, nil
}
