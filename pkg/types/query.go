package types

import (
	"fmt"
	"strings"
	"time"
)

// SortOrder is the direction applied to every sort key of a request.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ParseOrder maps "", "asc" and "desc" (any case) to a SortOrder.
func ParseOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return OrderAsc, nil
	case "desc":
		return OrderDesc, nil
	}
	return "", fmt.Errorf("%w: order must be asc or desc, got %q", ErrInvalidArgument, s)
}

// Desc reports whether the order is descending.
func (o SortOrder) Desc() bool {
	return strings.EqualFold(string(o), string(OrderDesc))
}

// SearchParams are the parameters every kind's query shares.
// A blank Text selects the structured path.
type SearchParams struct {
	Text       string
	Sort       []string
	Order      SortOrder
	PageNumber int
	PageSize   int
}

// HasText reports whether the request carries free text.
func (p SearchParams) HasText() bool {
	return strings.TrimSpace(p.Text) != ""
}

// DoctorQuery filters doctors on the structured path. Empty filters match all.
type DoctorQuery struct {
	UserIDs        []int64
	Emails         []string
	Specialization string
	SearchParams
}

// PatientQuery filters patients on the structured path.
type PatientQuery struct {
	UserIDs      []int64
	FirstNames   []string
	LastNames    []string
	DatesOfBirth []time.Time
	Phones       []string
	SearchParams
}

// AppointmentQuery filters appointments on the structured path.
type AppointmentQuery struct {
	PatientIDs []int64
	DoctorIDs  []int64
	Dates      []time.Time
	Statuses   []string
	SearchParams
}
