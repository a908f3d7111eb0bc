// Package searcher answers record searches for doctors, patients and
// appointments.
//
// Every request takes one of two paths:
//
//   - Structured: the text is blank. Typed filters, multi-key sort and
//     pagination run in the record store.
//   - Full-text: the text is not blank. The planner ranks documents in the
//     kind's FTS5 index; for appointments the participant names of the
//     returned page are then read from the record store.
//
// Both paths validate the page and sort the same way and return the same
// pager.Page envelope, so callers cannot tell them apart by shape.
//
// # Basic Usage
//
//	s := searcher.New(store, planner.New(coord, 100), searcher.Options{
//	    MaxPageSize: 100,
//	    CacheSize:   1000,
//	    CacheTTL:    time.Minute,
//	    Generation:  coord.Generation,
//	})
//
//	page, err := s.SearchPatients(ctx, types.PatientQuery{
//	    SearchParams: types.SearchParams{Text: "jo", PageNumber: 1, PageSize: 20},
//	})
//
// # Errors
//
// Invalid pages, orders and sort fields fail with types.ErrInvalidArgument
// before any storage is touched. Storage faults on either path fail with
// types.ErrSearchUnavailable, so an empty page always means "no matches".
// A failed name lookup during appointment hydration is logged and leaves the
// names empty; the page is still returned.
//
// # Caching
//
// Full-text pages are cached in an LRU keyed by the normalized request.
// An entry is only served while the index generation it was computed at is
// current, so any index write makes older entries misses.
package searcher
