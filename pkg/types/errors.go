package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the record store, the index and the search service.
// Callers match with errors.Is; every layer wraps with %w.
var (
	// ErrInvalidArgument covers bad page/size, order, sort field or entity kind.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownKind is returned for an entity kind outside doctor/patient/appointment.
	ErrUnknownKind = fmt.Errorf("%w: unknown entity kind", ErrInvalidArgument)

	// ErrNotFound is returned when an active record with the given id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIndexUnavailable is returned when a full-text index cannot be read or written.
	// The record store write that preceded it has already committed.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrSearchUnavailable is returned by search when a storage layer failed,
	// so callers can tell a fault apart from an empty result.
	ErrSearchUnavailable = errors.New("search unavailable")
)
