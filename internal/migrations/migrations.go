// Package migrations holds the SQLite schema and applies it in order.
package migrations

import "embed"

// FS contains the numbered .sql migration files.
//
//go:embed *.sql
var FS embed.FS
