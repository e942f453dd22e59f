// Package dbmigrations exposes the embedded SQL migrations for the journal schema.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into the binaries.
//
//go:embed *.sql
var Files embed.FS
