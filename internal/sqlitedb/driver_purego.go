//go:build !sqlite_cgo

package sqlitedb

// Default build. Pure Go SQLite with FTS5 compiled in, no C toolchain needed:
//
//	CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered for SQLite
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
