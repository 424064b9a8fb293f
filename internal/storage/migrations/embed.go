// Package migrations applies the embedded database schema. Migrations
// are idempotent; running them on every startup is safe.
package migrations

import "embed"

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS
