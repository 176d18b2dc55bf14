package domain

import "context"

// Database defines lifecycle operations for the underlying database.
// The implementation owns its migration files, so the relational backend
// can be swapped without touching services.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}
