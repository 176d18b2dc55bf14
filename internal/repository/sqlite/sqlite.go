package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/migrations"
)

// DB wraps the SQLite connection and hands out repositories backed by it.
type DB struct {
	SqlDB *sql.DB
}

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode and foreign keys.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db}, nil
}

// Migrate applies pending schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, db.SqlDB)
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.SqlDB.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.SqlDB.Close()
}

// Listings returns the listing repository.
func (db *DB) Listings() domain.ListingRepository {
	return &listingRepo{db: db.SqlDB}
}

// Files returns a blob store whose public URLs start with urlPrefix.
func (db *DB) Files(urlPrefix string) *FileStore {
	return &FileStore{db: db.SqlDB, urlPrefix: urlPrefix}
}
