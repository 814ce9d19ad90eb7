// Package store implements the device-local persistence layer: a single
// embedded SQLite database holding every synced table, the per-row sync
// bookkeeping columns, and the forward-only schema migrations.
//
// Content columns never hold plaintext of sensitive fields; callers supply
// ciphertext and the store treats it as opaque. Plaintext metadata columns
// exist only so the device can sort and filter without decrypting.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/tandemapp/tandem/internal/logging"
	"github.com/tandemapp/tandem/internal/store/migrations"
)

// Store is the shared handle to the local database. Construct one per
// process with New and inject it where needed; the SQLite engine serializes
// writers internally, so single-row operations need no extra locking.
type Store struct {
	path string
	log  logging.Logger

	mu sync.Mutex
	db *sql.DB
}

// New returns an unopened Store for the database file at path.
// Use ":memory:" for an in-memory database (useful for testing).
func New(path string, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{path: path, log: log}
}

// Open opens the database, applies the durability pragmas, and migrates the
// schema to the current version. It is idempotent: calling it again on an
// already-open store is a no-op.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	dsn := s.path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrate database: %w", err)
	}

	s.db = db
	s.log.Info(ctx, "store opened", "path", s.path)
	return nil
}

// runMigrations brings the schema to the latest known version. goose gates
// every delta on its stored version counter and applies each one in its own
// transaction, so a failed delta never advances the version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Close closes the underlying database. The store can be re-opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB exposes the raw handle for callers that need transaction control.
func (s *Store) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("store is not open")
	}
	return s.db, nil
}
