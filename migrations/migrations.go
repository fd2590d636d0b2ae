// Package migrations embeds the goose SQL migrations so the server can
// migrate its own database on startup.
package migrations

import "embed"

//go:embed *.sql
var MigrationsFS embed.FS
