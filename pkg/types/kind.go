package types

import (
	"fmt"
	"strings"
)

// EntityKind names one of the record types that owns its own index.
type EntityKind string

const (
	KindDoctor      EntityKind = "doctor"
	KindPatient     EntityKind = "patient"
	KindAppointment EntityKind = "appointment"
)

// AllKinds lists every entity kind in a stable order.
var AllKinds = []EntityKind{KindDoctor, KindPatient, KindAppointment}

// ParseKind accepts a kind name in any case, singular or plural.
func ParseKind(s string) (EntityKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, "s")
	switch EntityKind(name) {
	case KindDoctor, KindPatient, KindAppointment:
		return EntityKind(name), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	switch k {
	case KindDoctor, KindPatient, KindAppointment:
		return true
	}
	return false
}

func (k EntityKind) String() string {
	return string(k)
}
