// Package store persists mirrored catalog records in SQLite through gorm.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

// Config contains database connection options.
type Config struct {
	Path string // SQLite file path, or ":memory:"
	DSN  string // Optional DSN override
}

// Open initialises a gorm.DB for cfg. The pool is limited to one connection:
// SQLite has a single writer, and in-memory databases exist per connection.
func Open(cfg Config) (*gorm.DB, error) {
	dsn := cfg.DSN

	if dsn == "" {
		path := strings.TrimSpace(cfg.Path)
		switch {
		case path == "", strings.EqualFold(path, MemoryPath):
			dsn = "file::memory:"
		default:
			if err := ensureDir(path); err != nil {
				return nil, err
			}
			dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", filepath.ToSlash(path))
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// IsMemory reports whether path selects an in-memory database.
func IsMemory(path string) bool {
	path = strings.TrimSpace(path)
	return path == "" || strings.EqualFold(path, MemoryPath)
}

// Migrate creates the entity tables.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("nil database handle")
	}
	if err := db.AutoMigrate(&GameRow{}, &CategoryRow{}, &ModRow{}, &FileRow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// CloseDB closes the connection pool behind db.
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
