package storage

import (
	"context"

	"github.com/dshills/caresearch/internal/pager"
	"github.com/dshills/caresearch/pkg/types"
)

// Store is the record store: the source of truth for doctors, patients and
// appointments. Every Get/List/Each operation sees active records only.
type Store interface {
	// Doctor operations
	GetDoctor(ctx context.Context, id int64) (*types.Doctor, error)
	CreateDoctor(ctx context.Context, d *types.Doctor) error
	UpdateDoctor(ctx context.Context, d *types.Doctor) error
	ListDoctors(ctx context.Context, q types.DoctorQuery) (pager.Page[types.Doctor], error)
	GetDoctorsByIDs(ctx context.Context, ids []int64) (map[int64]*types.Doctor, error)
	EachActiveDoctor(ctx context.Context, fn func(*types.Doctor) error) error

	// Patient operations
	GetPatient(ctx context.Context, id int64) (*types.Patient, error)
	CreatePatient(ctx context.Context, p *types.Patient) error
	UpdatePatient(ctx context.Context, p *types.Patient) error
	ListPatients(ctx context.Context, q types.PatientQuery) (pager.Page[types.Patient], error)
	GetPatientsByIDs(ctx context.Context, ids []int64) (map[int64]*types.Patient, error)
	EachActivePatient(ctx context.Context, fn func(*types.Patient) error) error

	// Appointment operations
	GetAppointment(ctx context.Context, id int64) (*types.Appointment, error)
	GetAppointmentDetail(ctx context.Context, id int64) (*types.AppointmentDetail, error)
	CreateAppointment(ctx context.Context, a *types.Appointment) error
	UpdateAppointment(ctx context.Context, a *types.Appointment) error
	ListAppointments(ctx context.Context, q types.AppointmentQuery) (pager.Page[types.AppointmentResult], error)
	EachActiveAppointment(ctx context.Context, fn func(*types.AppointmentDetail) error) error
	AppointmentIDsForPatient(ctx context.Context, patientID int64) ([]int64, error)
	AppointmentIDsForDoctor(ctx context.Context, doctorID int64) ([]int64, error)

	Close() error
}

// Conn is the query surface a dialect adapter provides. Row.Scan reports a
// missing row as types.ErrNotFound.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) (rowsAffected int64, err error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Close() error
}

// Rows is a forward-only result cursor
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Row is a single-row result
type Row interface {
	Scan(dest ...any) error
}

// Dialect selects placeholder syntax.
type Dialect int

const (
	// DialectSQLite uses ? placeholders
	DialectSQLite Dialect = iota
	// DialectPostgres uses $1, $2, ... placeholders
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}
