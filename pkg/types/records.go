package types

import (
	"strings"
	"time"
)

// Doctor is a clinical staff record.
type Doctor struct {
	ID             int64
	UserID         int64
	FirstName      string
	LastName       string
	Specialization string
	ContactNumber  string
	Email          string
	Schedule       string
	IsActive       bool
	CreatedAt      time.Time
	ModifiedAt     time.Time
}

// FullName returns "First Last" with missing parts dropped.
func (d *Doctor) FullName() string {
	return joinName(d.FirstName, d.LastName)
}

// Patient is a subject record. DateOfBirth is nil when unknown.
type Patient struct {
	ID                 int64
	UserID             int64
	FirstName          string
	LastName           string
	DateOfBirth        *time.Time
	Gender             string
	ContactNumber      string
	Address            string
	MedicalHistory     string
	Allergies          string
	CurrentMedications string
	IsActive           bool
	CreatedAt          time.Time
	ModifiedAt         time.Time
}

// FullName returns "First Last" with missing parts dropped.
func (p *Patient) FullName() string {
	return joinName(p.FirstName, p.LastName)
}

// Appointment is a scheduled event between one patient and one doctor.
type Appointment struct {
	ID              int64
	PatientID       int64
	DoctorID        int64
	AppointmentDate time.Time
	Reason          string
	Status          string
	Notes           string
	IsActive        bool
	CreatedAt       time.Time
	ModifiedAt      time.Time
}

// AppointmentDetail is an appointment together with its related records.
// Patient or Doctor is nil when the related record is missing or inactive.
type AppointmentDetail struct {
	Appointment
	Patient *Patient
	Doctor  *Doctor
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
