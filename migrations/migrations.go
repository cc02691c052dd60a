// Package migrations embeds the goose SQL migrations for the checkouts schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
