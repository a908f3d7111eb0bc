package types

import "time"

// DoctorResult is the search DTO for doctors, identical on both query paths.
type DoctorResult struct {
	ID             int64  `json:"doctorId"`
	UserID         int64  `json:"userId"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Specialization string `json:"specialization"`
	ContactNumber  string `json:"contactNumber"`
	Email          string `json:"email"`
	Schedule       string `json:"schedule"`
}

// PatientResult is the search DTO for patients. DateOfBirth is YYYY-MM-DD or empty.
type PatientResult struct {
	ID                 int64  `json:"patientId"`
	UserID             int64  `json:"userId"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	DateOfBirth        string `json:"dateOfBirth"`
	Gender             string `json:"gender"`
	ContactNumber      string `json:"contactNumber"`
	Address            string `json:"address"`
	MedicalHistory     string `json:"medicalHistory"`
	Allergies          string `json:"allergies"`
	CurrentMedications string `json:"currentMedications"`
}

// AppointmentResult is the search DTO for appointments. PatientName and
// DoctorName carry the current display names of the related records and are
// empty when a related record could not be resolved.
type AppointmentResult struct {
	ID              int64     `json:"appointmentId"`
	PatientID       int64     `json:"patientId"`
	DoctorID        int64     `json:"doctorId"`
	PatientName     string    `json:"patientName"`
	DoctorName      string    `json:"doctorName"`
	AppointmentDate time.Time `json:"appointmentDate"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes"`
}

// DateLayout is the fixed-width layout used for dates of birth.
const DateLayout = "2006-01-02"

// NewDoctorResult maps a record to its DTO.
func NewDoctorResult(d *Doctor) DoctorResult {
	return DoctorResult{
		ID:             d.ID,
		UserID:         d.UserID,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Specialization: d.Specialization,
		ContactNumber:  d.ContactNumber,
		Email:          d.Email,
		Schedule:       d.Schedule,
	}
}

// NewPatientResult maps a record to its DTO.
func NewPatientResult(p *Patient) PatientResult {
	r := PatientResult{
		ID:                 p.ID,
		UserID:             p.UserID,
		FirstName:          p.FirstName,
		LastName:           p.LastName,
		Gender:             p.Gender,
		ContactNumber:      p.ContactNumber,
		Address:            p.Address,
		MedicalHistory:     p.MedicalHistory,
		Allergies:          p.Allergies,
		CurrentMedications: p.CurrentMedications,
	}
	if p.DateOfBirth != nil {
		r.DateOfBirth = p.DateOfBirth.Format(DateLayout)
	}
	return r
}
