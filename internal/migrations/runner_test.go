package migrations_test

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cordobacasas/casas/internal/migrations"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// A single connection keeps every query on the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrations(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("first migration run: %v", err)
	}

	// Verify the listings table exists by inserting a row.
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx,
		`INSERT INTO listings (id, title, price, address, property_type, operation, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"l-1", "Casa", 1000.0, "Calle 1", "casa", "venta", now, now,
	)
	if err != nil {
		t.Fatalf("insert into listings: %v", err)
	}

	// The schema rejects values outside the enums.
	_, err = db.ExecContext(ctx,
		`INSERT INTO listings (id, title, price, address, property_type, operation, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"l-2", "Castillo", 1000.0, "Calle 2", "castillo", "venta", now, now,
	)
	if err == nil {
		t.Fatal("expected check constraint to reject unknown property type")
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("second run (idempotent): %v", err)
	}

	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 migration records, got %d", count)
	}
}

func TestRunFS_AppliesInNameOrder(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"002_insert.sql": {Data: []byte("INSERT INTO things (name) VALUES ('a');")},
		"001_create.sql": {Data: []byte("CREATE TABLE things (name TEXT NOT NULL);")},
		"README.md":      {Data: []byte("not a migration")},
	}
	if err := migrations.RunFS(ctx, db, fsys); err != nil {
		t.Fatalf("RunFS: %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM things").Scan(&n); err != nil {
		t.Fatalf("count things: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestRunFS_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{"001_broken.sql": {Data: []byte("CREATE TABLE;")}}
	if err := migrations.RunFS(ctx, db, fsys); err == nil {
		t.Fatal("expected broken migration to fail")
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no recorded migrations, got %d", count)
	}
}
