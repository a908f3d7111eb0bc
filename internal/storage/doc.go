// Package storage is the record store for doctors, patients and appointments.
//
// The record store is the single source of truth; the full-text indexes are
// derived from it and can be rebuilt from it at any time.
//
// # Backends
//
// SQLStore holds all SQL and runs over a Conn. NewSQLiteStore opens a SQLite
// database (driver chosen at build time, see internal/sqlitedb); the
// postgres subpackage adapts a pgx pool.
//
//	store, err := storage.NewSQLiteStore("records.db")
//	defer store.Close()
//
// # Soft delete
//
// Records are never removed. Setting IsActive to false through an Update
// hides the record from every Get, List, Each and batch lookup.
//
// # Structured queries
//
// List operations take the typed query of their kind. Filters are exact
// matches or set membership, combined with AND. Sort keys are looked up in
// an explicit per-kind table (unknown keys fail with types.ErrInvalidArgument);
// one direction applies to every key and the primary key breaks ties:
//
//	page, err := store.ListPatients(ctx, types.PatientQuery{
//	    LastNames:    []string{"Doe", "Roe"},
//	    SearchParams: types.SearchParams{Sort: []string{"lastName", "dob"}, PageNumber: 1, PageSize: 20},
//	})
//
// # Time encoding
//
// Timestamps are stored as fixed-width UTC text (TimestampLayout) and dates
// of birth as YYYY-MM-DD, so text order is chronological in every dialect.
package storage
