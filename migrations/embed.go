// Package migrations embeds the SQL schema applied by cmd/migrate.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS
