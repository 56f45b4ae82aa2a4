package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-mirror/pkg/client"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openTestDB opens a private in-memory sqlite database with the cache table.
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

	require.NoError(t, db.AutoMigrate(&APIRequest{}))
	return db
}

// fakeFetcher answers every request with the same canned response.
type fakeFetcher struct {
	mu     sync.Mutex
	status int
	body   string
	err    error
	paths  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, path string) (*client.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = 200
	}
	return &client.Response{
		URL:          path,
		StatusCode:   status,
		Body:         []byte(f.body),
		DispatchedAt: time.Now().UTC(),
		Attempts:     1,
	}, nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}
