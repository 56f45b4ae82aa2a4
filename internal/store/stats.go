package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Stats counts the rows of every mirrored table.
type Stats struct {
	Games      int64
	Categories int64
	Mods       int64
	Files      int64
	Requests   int64
}

// CollectStats counts rows through conn. Tables that do not exist yet count
// as empty.
func CollectStats(ctx context.Context, conn Conn) (Stats, error) {
	var stats Stats
	db := conn.DB(ctx)

	targets := []struct {
		table string
		dst   *int64
	}{
		{"games", &stats.Games},
		{"categories", &stats.Categories},
		{"mods", &stats.Mods},
		{"files", &stats.Files},
		{"api_requests", &stats.Requests},
	}

	for _, target := range targets {
		if !db.Migrator().HasTable(target.table) {
			continue
		}
		if err := db.Table(target.table).Count(target.dst).Error; err != nil {
			return stats, fmt.Errorf("count %s: %w", target.table, err)
		}
	}
	return stats, nil
}

// StaticConn wraps a plain *gorm.DB as a Conn, for read-only tools.
func StaticConn(db *gorm.DB) Conn {
	return staticConn{db: db}
}

type staticConn struct {
	db *gorm.DB
}

func (c staticConn) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
