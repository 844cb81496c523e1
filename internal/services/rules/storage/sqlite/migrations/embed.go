package migrations

import "embed"

// FS contains embedded SQLite migrations for rule catalog storage.
//
//go:embed *.sql
var FS embed.FS
