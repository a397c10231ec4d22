// Package migrations embeds the notifications schema migration files.
package migrations

import "embed"

// FS exposes the embedded migration files.
//
//go:embed *.sql
var FS embed.FS
