package document

import (
	"fmt"
	"strings"

	"github.com/dshills/caresearch/pkg/types"
)

// FieldKind says how a document field is stored and matched.
type FieldKind int

const (
	// Identifier fields are stored and matched exactly, never tokenized.
	Identifier FieldKind = iota
	// Text fields are tokenized and free-text searchable.
	Text
	// SortableDate fields hold fixed-width dates whose text order is chronological.
	SortableDate
)

func (k FieldKind) String() string {
	switch k {
	case Identifier:
		return "identifier"
	case Text:
		return "text"
	case SortableDate:
		return "sortable_date"
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// Field names
const (
	FieldID                 = "id"
	FieldUserID             = "user_id"
	FieldFirstName          = "first_name"
	FieldLastName           = "last_name"
	FieldSpecialization     = "specialization"
	FieldContactNumber      = "contact_number"
	FieldEmail              = "email"
	FieldSchedule           = "schedule"
	FieldDateOfBirth        = "date_of_birth"
	FieldGender             = "gender"
	FieldAddress            = "address"
	FieldMedicalHistory     = "medical_history"
	FieldAllergies          = "allergies"
	FieldCurrentMedications = "current_medications"
	FieldPatientID          = "patient_id"
	FieldDoctorID           = "doctor_id"
	FieldAppointmentDate    = "appointment_date"
	FieldReason             = "reason"
	FieldStatus             = "status"
	FieldNotes              = "notes"
	FieldPatientName        = "patient_name"
	FieldDoctorName         = "doctor_name"
)

// FieldDef declares one field of a schema
type FieldDef struct {
	Name string
	Kind FieldKind
}

// Schema is the fixed field set of one entity kind. The first field is
// always the FieldID identifier.
type Schema struct {
	Kind   types.EntityKind
	Fields []FieldDef

	byName  map[string]FieldDef
	sortKey map[string]string
}

func newSchema(kind types.EntityKind, aliases map[string]string, fields ...FieldDef) *Schema {
	s := &Schema{
		Kind:    kind,
		Fields:  append([]FieldDef{{FieldID, Identifier}}, fields...),
		byName:  make(map[string]FieldDef),
		sortKey: make(map[string]string),
	}
	for _, f := range s.Fields {
		s.byName[f.Name] = f
		s.sortKey[normalize(f.Name)] = f.Name
	}
	for alias, field := range aliases {
		s.sortKey[normalize(alias)] = field
	}
	return s
}

var schemas = map[types.EntityKind]*Schema{
	types.KindDoctor: newSchema(types.KindDoctor,
		map[string]string{"phone": FieldContactNumber},
		FieldDef{FieldUserID, Identifier},
		FieldDef{FieldFirstName, Text},
		FieldDef{FieldLastName, Text},
		FieldDef{FieldSpecialization, Text},
		FieldDef{FieldContactNumber, Text},
		FieldDef{FieldEmail, Text},
		FieldDef{FieldSchedule, Text},
	),
	types.KindPatient: newSchema(types.KindPatient,
		map[string]string{"dob": FieldDateOfBirth, "phone": FieldContactNumber},
		FieldDef{FieldUserID, Identifier},
		FieldDef{FieldFirstName, Text},
		FieldDef{FieldLastName, Text},
		FieldDef{FieldDateOfBirth, SortableDate},
		FieldDef{FieldGender, Text},
		FieldDef{FieldContactNumber, Text},
		FieldDef{FieldAddress, Text},
		FieldDef{FieldMedicalHistory, Text},
		FieldDef{FieldAllergies, Text},
		FieldDef{FieldCurrentMedications, Text},
	),
	types.KindAppointment: newSchema(types.KindAppointment,
		map[string]string{"date": FieldAppointmentDate},
		FieldDef{FieldPatientID, Identifier},
		FieldDef{FieldDoctorID, Identifier},
		FieldDef{FieldAppointmentDate, SortableDate},
		FieldDef{FieldReason, Text},
		FieldDef{FieldStatus, Text},
		FieldDef{FieldNotes, Text},
		FieldDef{FieldPatientName, Text},
		FieldDef{FieldDoctorName, Text},
	),
}

// SchemaFor returns the schema of kind.
func SchemaFor(kind types.EntityKind) (*Schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownKind, kind)
	}
	return s, nil
}

// MustSchema is SchemaFor for kinds known at compile time.
func MustSchema(kind types.EntityKind) *Schema {
	s, err := SchemaFor(kind)
	if err != nil {
		panic(err)
	}
	return s
}

// Field looks up a field definition by exact name.
func (s *Schema) Field(name string) (FieldDef, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// StoredFields lists every field except FieldID, in column order.
func (s *Schema) StoredFields() []FieldDef {
	return s.Fields[1:]
}

// TextFields lists the names of the free-text searchable fields.
func (s *Schema) TextFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Kind == Text {
			out = append(out, f.Name)
		}
	}
	return out
}

// SortField resolves a caller-supplied sort name (field name, camelCase
// variant or alias) to a field name. Unknown names are rejected.
func (s *Schema) SortField(name string) (string, error) {
	field, ok := s.sortKey[normalize(name)]
	if !ok {
		return "", fmt.Errorf("%w: unknown sort field %q for %s", types.ErrInvalidArgument, name, s.Kind)
	}
	return field, nil
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "").Replace(s)
}
