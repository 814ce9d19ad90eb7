// Package migrations holds the embedded, forward-only schema deltas applied
// by goose. SQL migrations live in this directory; Go migrations register
// themselves in init and must be independently idempotent.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
