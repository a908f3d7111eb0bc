// Package fts stores projected documents in SQLite FTS5 tables.
//
// Each entity kind gets its own database with a single "documents" virtual
// table. The FTS5 rowid is the record id, Text fields are tokenized with
// unicode61 (diacritics folded) and every other field is UNINDEXED.
//
// Writes go through Tx so an upsert (delete then insert) or a rebuild
// (clear then insert all) is published atomically. Reads go through a
// Snapshot so a count and the page that follows it agree.
package fts
