// Package types provides the shared type definitions for caresearch.
//
// It holds the three record types kept by the record store (Doctor, Patient,
// Appointment), the typed query parameters of the structured search path,
// the result DTOs returned by both search paths, and the error taxonomy.
//
// # Entity kinds
//
// Every record type has its own full-text index, addressed by EntityKind:
//
//	kind, err := types.ParseKind("patients") // types.KindPatient
//
// # Queries
//
// Each query embeds SearchParams. A blank Text answers the query from the
// record store using the typed filters; any other Text answers it from the
// kind's full-text index and ignores the typed filters:
//
//	q := types.PatientQuery{
//	    LastNames:    []string{"Doe"},
//	    SearchParams: types.SearchParams{Sort: []string{"dob"}, PageNumber: 1, PageSize: 10},
//	}
//
// # Errors
//
// Callers match failures with errors.Is against ErrInvalidArgument,
// ErrNotFound, ErrIndexUnavailable and ErrSearchUnavailable.
package types
