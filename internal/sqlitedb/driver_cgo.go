//go:build sqlite_cgo

package sqlitedb

// Compiled with the sqlite_cgo tag. FTS5 must be enabled in mattn's build:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo sqlite_fts5" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered for SQLite
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
