// Package document projects records into flat searchable documents.
//
// Each entity kind has a fixed Schema. Fields are Identifier (stored, exact),
// Text (tokenized) or SortableDate (fixed-width, text order is time order).
// Projection is pure: no I/O, same record in, same document out. An inactive
// record projects to nil, meaning "no document".
//
//	doc := document.ProjectPatient(patient)
//	if doc == nil {
//	    // soft-deleted: remove from the index
//	}
package document
