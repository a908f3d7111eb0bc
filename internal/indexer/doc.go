// Package indexer owns the full-text index writers and keeps them in step
// with the record store.
//
// A Coordinator holds exactly one writer per entity kind for the life of the
// process. Every mutation goes through it:
//
//	coord, err := indexer.Open(ctx, "/var/lib/caresearch/index", log)
//
//	// after a record write commits
//	err = coord.Reindex(ctx, document.ProjectPatient(p))
//
//	// after a soft delete
//	err = coord.Deindex(ctx, types.KindPatient, p.ID)
//
// # Upsert
//
// Reindex and Deindex are both Upsert: delete the document with the id, then
// insert the new one if there is one, in a single transaction. Repeating an
// upsert leaves exactly one document per id, and a cancelled upsert leaves the
// previous document in place.
//
// # Rebuild
//
// Rebuild holds the kind's writer for its whole run, clears the index and
// refills it from a Source inside one transaction. Searches running at the
// same time see the complete old index until the commit. RebuildAll runs the
// kinds in parallel.
//
// # Reads
//
// Read hands the planner a fresh snapshot. Anything committed before Read was
// called is visible in it. Generation increases on every commit so callers
// can tell when cached results are stale.
package indexer
