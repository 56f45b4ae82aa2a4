package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DefaultCommitEvery is the number of units batched per transaction.
const DefaultCommitEvery = 50

// Session batches writes into one long-running transaction that is committed
// every CommitEvery units. Every reader and writer of the database must go
// through DB so that they share the transaction.
type Session struct {
	mu          sync.Mutex
	db          *gorm.DB
	tx          *gorm.DB
	commitEvery int
	pending     int
	closed      bool
	logger      zerolog.Logger
}

// NewSession creates a session on db.
func NewSession(db *gorm.DB, commitEvery int) *Session {
	if db == nil {
		panic("session database cannot be nil")
	}
	if commitEvery <= 0 {
		commitEvery = DefaultCommitEvery
	}
	return &Session{
		db:          db,
		commitEvery: commitEvery,
		logger:      log.With().Str("component", "store").Logger(),
	}
}

// DB returns the handle of the open transaction, beginning one if needed.
// The transaction itself is not bound to ctx, so a cancelled caller never
// rolls back work that was already done.
func (s *Session) DB(ctx context.Context) *gorm.DB {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.db.WithContext(ctx)
	}
	if s.tx == nil {
		s.tx = s.db.WithContext(context.Background()).Begin()
	}
	return s.tx.WithContext(ctx)
}

// Checkpoint marks the end of one unit of work and commits when enough units
// have accumulated.
func (s *Session) Checkpoint() error {
	s.mu.Lock()
	s.pending++
	due := s.pending >= s.commitEvery
	s.mu.Unlock()

	if due {
		return s.Commit()
	}
	return nil
}

// Commit commits the open transaction, if any.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		s.pending = 0
		return nil
	}

	tx := s.tx
	s.tx = nil
	pending := s.pending
	s.pending = 0

	if err := tx.Commit().Error; err != nil {
		s.logger.Error().Err(err).Int("units", pending).Msg("Commit failed")
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug().Int("units", pending).Msg("Committed")
	return nil
}

// Rollback discards the open transaction, if any.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	s.pending = 0
	return tx.Rollback().Error
}

// Close commits outstanding work and closes the database. It is safe to call
// more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	commitErr := s.Commit()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if err := CloseDB(s.db); err != nil {
		if commitErr != nil {
			return fmt.Errorf("%w; close: %v", commitErr, err)
		}
		return fmt.Errorf("close database: %w", err)
	}
	return commitErr
}
