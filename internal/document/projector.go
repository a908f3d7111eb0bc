package document

import (
	"fmt"

	"github.com/dshills/caresearch/pkg/types"
)

// ProjectDoctor maps a doctor to its document, or nil when the record is inactive.
// A nil record or a record without an id is a programming error and panics.
func ProjectDoctor(d *types.Doctor) *Document {
	if d == nil || d.ID <= 0 {
		panic(fmt.Sprintf("document: doctor without identifier: %+v", d))
	}
	if !d.IsActive {
		return nil
	}
	doc := newDocument(types.KindDoctor, d.ID)
	doc.Fields[FieldUserID] = formatID(d.UserID)
	doc.Fields[FieldFirstName] = d.FirstName
	doc.Fields[FieldLastName] = d.LastName
	doc.Fields[FieldSpecialization] = d.Specialization
	doc.Fields[FieldContactNumber] = d.ContactNumber
	doc.Fields[FieldEmail] = d.Email
	doc.Fields[FieldSchedule] = d.Schedule
	return doc
}

// ProjectPatient maps a patient to its document, or nil when the record is inactive.
func ProjectPatient(p *types.Patient) *Document {
	if p == nil || p.ID <= 0 {
		panic(fmt.Sprintf("document: patient without identifier: %+v", p))
	}
	if !p.IsActive {
		return nil
	}
	doc := newDocument(types.KindPatient, p.ID)
	doc.Fields[FieldUserID] = formatID(p.UserID)
	doc.Fields[FieldFirstName] = p.FirstName
	doc.Fields[FieldLastName] = p.LastName
	doc.Fields[FieldDateOfBirth] = formatDate(p.DateOfBirth)
	doc.Fields[FieldGender] = p.Gender
	doc.Fields[FieldContactNumber] = p.ContactNumber
	doc.Fields[FieldAddress] = p.Address
	doc.Fields[FieldMedicalHistory] = p.MedicalHistory
	doc.Fields[FieldAllergies] = p.Allergies
	doc.Fields[FieldCurrentMedications] = p.CurrentMedications
	return doc
}

// ProjectAppointment maps an appointment and its already loaded related
// records to a document, or nil when the appointment is inactive. The
// participant names are a snapshot used for matching; an absent or inactive
// related record projects to an empty name.
func ProjectAppointment(a *types.AppointmentDetail) *Document {
	if a == nil || a.ID <= 0 {
		panic(fmt.Sprintf("document: appointment without identifier: %+v", a))
	}
	if !a.IsActive {
		return nil
	}
	doc := newDocument(types.KindAppointment, a.ID)
	doc.Fields[FieldPatientID] = formatID(a.PatientID)
	doc.Fields[FieldDoctorID] = formatID(a.DoctorID)
	doc.Fields[FieldAppointmentDate] = formatTimestamp(a.AppointmentDate)
	doc.Fields[FieldReason] = a.Reason
	doc.Fields[FieldStatus] = a.Status
	doc.Fields[FieldNotes] = a.Notes
	if a.Patient != nil && a.Patient.IsActive {
		doc.Fields[FieldPatientName] = a.Patient.FullName()
	}
	if a.Doctor != nil && a.Doctor.IsActive {
		doc.Fields[FieldDoctorName] = a.Doctor.FullName()
	}
	return doc
}

// Project dispatches on the record type: *types.Doctor, *types.Patient or
// *types.AppointmentDetail. The returned id is set even when the document is nil.
func Project(record any) (kind types.EntityKind, id int64, doc *Document, err error) {
	switch r := record.(type) {
	case *types.Doctor:
		return types.KindDoctor, r.ID, ProjectDoctor(r), nil
	case *types.Patient:
		return types.KindPatient, r.ID, ProjectPatient(r), nil
	case *types.AppointmentDetail:
		return types.KindAppointment, r.ID, ProjectAppointment(r), nil
	}
	return "", 0, nil, fmt.Errorf("%w: cannot project %T", types.ErrInvalidArgument, record)
}
