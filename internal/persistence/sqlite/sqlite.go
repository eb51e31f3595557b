// Package sqlite implements persistence.Store on an embedded SQLite database
// using modernc.org/sqlite. The schema is managed with goose migrations
// embedded in the binary.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/example/advising-portal/internal/persistence"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage is a SQLite backed persistence.Store.
type Storage struct {
	queries
	db *sql.DB
}

var _ persistence.Store = (*Storage)(nil)

// Open connects to the database at dsn. Call Migrate before first use.
func Open(ctx context.Context, dsn string) (*Storage, error) {
	db, err := openDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Storage{queries: queries{db: db}, db: db}, nil
}

// DB exposes the underlying handle.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Close releases the database handle.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate applies every pending embedded migration.
func (s *Storage) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("sqlite: migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("sqlite: apply migrations: %w", err)
	}
	return nil
}

// WithinTx implements persistence.Store.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, repos persistence.Repositories) error) error {
	return withTransaction(ctx, s.db, func(tx *sql.Tx) error {
		return fn(ctx, &queries{db: tx})
	})
}

// queries implements persistence.Repositories on a dbtx.
type queries struct {
	db dbtx
}
