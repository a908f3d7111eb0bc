package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/caresearch/internal/pager"
	"github.com/dshills/caresearch/pkg/types"
)

const (
	doctorColumns = `id, user_id, first_name, last_name, specialization, contact_number,
		email, schedule, is_active, created_at, modified_at`

	patientColumns = `id, user_id, first_name, last_name, date_of_birth, gender, contact_number,
		address, medical_history, allergies, current_medications, is_active, created_at, modified_at`

	appointmentColumns = `a.id, a.patient_id, a.doctor_id, a.appointment_date, a.reason, a.status,
		a.notes, a.is_active, a.created_at, a.modified_at`

	// relatedJoin attaches the active patient and doctor of an appointment.
	relatedJoin = `
		FROM appointments a
		LEFT JOIN patients p ON p.id = a.patient_id AND p.is_active = TRUE
		LEFT JOIN doctors d ON d.id = a.doctor_id AND d.is_active = TRUE`

	relatedNameColumns = `COALESCE(p.id, 0), COALESCE(p.first_name, ''), COALESCE(p.last_name, ''),
		COALESCE(d.id, 0), COALESCE(d.first_name, ''), COALESCE(d.last_name, '')`
)

// SQLStore implements Store over any Conn. The SQL is shared by SQLite and
// PostgreSQL; only placeholders differ.
type SQLStore struct {
	conn    Conn
	dialect Dialect
	now     func() time.Time
}

// New creates a store over an open connection whose schema is already migrated.
func New(conn Conn, dialect Dialect) *SQLStore {
	return &SQLStore{conn: conn, dialect: dialect, now: time.Now}
}

// Dialect reports the SQL dialect in use
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Close closes the underlying connection
func (s *SQLStore) Close() error {
	return s.conn.Close()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	return s.conn.Exec(ctx, rebind(s.dialect, query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (Rows, error) {
	return s.conn.Query(ctx, rebind(s.dialect, query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) Row {
	return s.conn.QueryRow(ctx, rebind(s.dialect, query), args...)
}

// rowScanner is satisfied by both Row and Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// listPage runs the count and the windowed select of a structured query.
func listPage[T any](ctx context.Context, s *SQLStore, from string, b *selectBuilder, order string,
	page, size int, columns string, scan func(rowScanner) (T, error)) (pager.Page[T], error) {
	if err := pager.Validate(page, size, 0); err != nil {
		return pager.Page[T]{}, err
	}

	var total int64
	if err := s.queryRow(ctx, "SELECT COUNT(*) "+from+b.whereClause(), b.args...).Scan(&total); err != nil {
		return pager.Page[T]{}, fmt.Errorf("failed to count rows: %w", err)
	}

	items := make([]T, 0, size)
	offset := pager.Offset(page, size)
	if int64(offset) < total {
		args := append(append([]any(nil), b.args...), size, offset)
		rows, err := s.query(ctx, "SELECT "+columns+" "+from+b.whereClause()+order+" LIMIT ? OFFSET ?", args...)
		if err != nil {
			return pager.Page[T]{}, fmt.Errorf("failed to list rows: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				return pager.Page[T]{}, err
			}
			items = append(items, item)
		}
		if err := rows.Err(); err != nil {
			return pager.Page[T]{}, err
		}
	}

	return pager.New(items, int(total), page, size), nil
}

func eachRow(rows Rows, fn func(rowScanner) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func activeFilter(ids []int64) *selectBuilder {
	b := newSelect("is_active = TRUE")
	inList(b, "id", ids)
	return b
}

// Doctor operations

func scanDoctor(r rowScanner) (*types.Doctor, error) {
	var d types.Doctor
	var created, modified string
	err := r.Scan(&d.ID, &d.UserID, &d.FirstName, &d.LastName, &d.Specialization,
		&d.ContactNumber, &d.Email, &d.Schedule, &d.IsActive, &created, &modified)
	if err != nil {
		return nil, err
	}
	if d.CreatedAt, err = parseTimestamp(created); err != nil {
		return nil, err
	}
	if d.ModifiedAt, err = parseTimestamp(modified); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLStore) GetDoctor(ctx context.Context, id int64) (*types.Doctor, error) {
	row := s.queryRow(ctx, "SELECT "+doctorColumns+" FROM doctors WHERE id = ? AND is_active = TRUE", id)
	d, err := scanDoctor(row)
	if err != nil {
		return nil, fmt.Errorf("get doctor %d: %w", id, err)
	}
	return d, nil
}

func (s *SQLStore) CreateDoctor(ctx context.Context, d *types.Doctor) error {
	now := s.now().UTC()
	err := s.queryRow(ctx, `
		INSERT INTO doctors (user_id, first_name, last_name, specialization, contact_number,
			email, schedule, is_active, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		d.UserID, d.FirstName, d.LastName, d.Specialization, d.ContactNumber,
		d.Email, d.Schedule, d.IsActive, FormatTimestamp(now), FormatTimestamp(now),
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	d.CreatedAt, d.ModifiedAt = now, now
	return nil
}

func (s *SQLStore) UpdateDoctor(ctx context.Context, d *types.Doctor) error {
	now := s.now().UTC()
	n, err := s.exec(ctx, `
		UPDATE doctors
		SET user_id = ?, first_name = ?, last_name = ?, specialization = ?, contact_number = ?,
		    email = ?, schedule = ?, is_active = ?, modified_at = ?
		WHERE id = ?`,
		d.UserID, d.FirstName, d.LastName, d.Specialization, d.ContactNumber,
		d.Email, d.Schedule, d.IsActive, FormatTimestamp(now), d.ID)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update doctor %d: %w", d.ID, types.ErrNotFound)
	}
	d.ModifiedAt = now
	return nil
}

func (s *SQLStore) ListDoctors(ctx context.Context, q types.DoctorQuery) (pager.Page[types.Doctor], error) {
	b := newSelect("is_active = TRUE")
	inList(b, "user_id", q.UserIDs)
	inList(b, "email", q.Emails)
	if q.Specialization != "" {
		b.eq("specialization", q.Specialization)
	}
	order, err := orderBy(doctorSortColumns, q.Sort, q.Order, "id")
	if err != nil {
		return pager.Page[types.Doctor]{}, err
	}
	return listPage(ctx, s, "FROM doctors", b, order, q.PageNumber, q.PageSize, doctorColumns,
		func(r rowScanner) (types.Doctor, error) {
			d, err := scanDoctor(r)
			if err != nil {
				return types.Doctor{}, err
			}
			return *d, nil
		})
}

func (s *SQLStore) GetDoctorsByIDs(ctx context.Context, ids []int64) (map[int64]*types.Doctor, error) {
	out := make(map[int64]*types.Doctor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	b := activeFilter(ids)
	rows, err := s.query(ctx, "SELECT "+doctorColumns+" FROM doctors"+b.whereClause(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load doctors: %w", err)
	}
	err = eachRow(rows, func(r rowScanner) error {
		d, err := scanDoctor(r)
		if err != nil {
			return err
		}
		out[d.ID] = d
		return nil
	})
	return out, err
}

func (s *SQLStore) EachActiveDoctor(ctx context.Context, fn func(*types.Doctor) error) error {
	rows, err := s.query(ctx, "SELECT "+doctorColumns+" FROM doctors WHERE is_active = TRUE ORDER BY id")
	if err != nil {
		return fmt.Errorf("failed to iterate doctors: %w", err)
	}
	return eachRow(rows, func(r rowScanner) error {
		d, err := scanDoctor(r)
		if err != nil {
			return err
		}
		return fn(d)
	})
}

// Patient operations

func scanPatient(r rowScanner) (*types.Patient, error) {
	var p types.Patient
	var dob, created, modified string
	err := r.Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &dob, &p.Gender, &p.ContactNumber,
		&p.Address, &p.MedicalHistory, &p.Allergies, &p.CurrentMedications, &p.IsActive, &created, &modified)
	if err != nil {
		return nil, err
	}
	if p.DateOfBirth, err = parseDate(dob); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTimestamp(created); err != nil {
		return nil, err
	}
	if p.ModifiedAt, err = parseTimestamp(modified); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLStore) GetPatient(ctx context.Context, id int64) (*types.Patient, error) {
	row := s.queryRow(ctx, "SELECT "+patientColumns+" FROM patients WHERE id = ? AND is_active = TRUE", id)
	p, err := scanPatient(row)
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}
	return p, nil
}

func (s *SQLStore) CreatePatient(ctx context.Context, p *types.Patient) error {
	now := s.now().UTC()
	err := s.queryRow(ctx, `
		INSERT INTO patients (user_id, first_name, last_name, date_of_birth, gender, contact_number,
			address, medical_history, allergies, current_medications, is_active, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		p.UserID, p.FirstName, p.LastName, FormatDate(p.DateOfBirth), p.Gender, p.ContactNumber,
		p.Address, p.MedicalHistory, p.Allergies, p.CurrentMedications, p.IsActive,
		FormatTimestamp(now), FormatTimestamp(now),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	p.CreatedAt, p.ModifiedAt = now, now
	return nil
}

func (s *SQLStore) UpdatePatient(ctx context.Context, p *types.Patient) error {
	now := s.now().UTC()
	n, err := s.exec(ctx, `
		UPDATE patients
		SET user_id = ?, first_name = ?, last_name = ?, date_of_birth = ?, gender = ?, contact_number = ?,
		    address = ?, medical_history = ?, allergies = ?, current_medications = ?, is_active = ?,
		    modified_at = ?
		WHERE id = ?`,
		p.UserID, p.FirstName, p.LastName, FormatDate(p.DateOfBirth), p.Gender, p.ContactNumber,
		p.Address, p.MedicalHistory, p.Allergies, p.CurrentMedications, p.IsActive,
		FormatTimestamp(now), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update patient %d: %w", p.ID, types.ErrNotFound)
	}
	p.ModifiedAt = now
	return nil
}

func (s *SQLStore) ListPatients(ctx context.Context, q types.PatientQuery) (pager.Page[types.Patient], error) {
	b := newSelect("is_active = TRUE")
	inList(b, "user_id", q.UserIDs)
	inList(b, "first_name", q.FirstNames)
	inList(b, "last_name", q.LastNames)
	if len(q.DatesOfBirth) > 0 {
		dobs := make([]string, len(q.DatesOfBirth))
		for i := range q.DatesOfBirth {
			dobs[i] = FormatDate(&q.DatesOfBirth[i])
		}
		inList(b, "date_of_birth", dobs)
	}
	inList(b, "contact_number", q.Phones)
	order, err := orderBy(patientSortColumns, q.Sort, q.Order, "id")
	if err != nil {
		return pager.Page[types.Patient]{}, err
	}
	return listPage(ctx, s, "FROM patients", b, order, q.PageNumber, q.PageSize, patientColumns,
		func(r rowScanner) (types.Patient, error) {
			p, err := scanPatient(r)
			if err != nil {
				return types.Patient{}, err
			}
			return *p, nil
		})
}

func (s *SQLStore) GetPatientsByIDs(ctx context.Context, ids []int64) (map[int64]*types.Patient, error) {
	out := make(map[int64]*types.Patient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	b := activeFilter(ids)
	rows, err := s.query(ctx, "SELECT "+patientColumns+" FROM patients"+b.whereClause(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load patients: %w", err)
	}
	err = eachRow(rows, func(r rowScanner) error {
		p, err := scanPatient(r)
		if err != nil {
			return err
		}
		out[p.ID] = p
		return nil
	})
	return out, err
}

func (s *SQLStore) EachActivePatient(ctx context.Context, fn func(*types.Patient) error) error {
	rows, err := s.query(ctx, "SELECT "+patientColumns+" FROM patients WHERE is_active = TRUE ORDER BY id")
	if err != nil {
		return fmt.Errorf("failed to iterate patients: %w", err)
	}
	return eachRow(rows, func(r rowScanner) error {
		p, err := scanPatient(r)
		if err != nil {
			return err
		}
		return fn(p)
	})
}

// Appointment operations

func scanAppointment(r rowScanner, extra ...any) (*types.Appointment, error) {
	var a types.Appointment
	var date, created, modified string
	dest := []any{&a.ID, &a.PatientID, &a.DoctorID, &date, &a.Reason, &a.Status,
		&a.Notes, &a.IsActive, &created, &modified}
	if err := r.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	var err error
	if a.AppointmentDate, err = parseTimestamp(date); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTimestamp(created); err != nil {
		return nil, err
	}
	if a.ModifiedAt, err = parseTimestamp(modified); err != nil {
		return nil, err
	}
	return &a, nil
}

// relatedNames receives the relatedNameColumns of a joined appointment row.
type relatedNames struct {
	patientID, doctorID       int64
	patientFirst, patientLast string
	doctorFirst, doctorLast   string
}

func (n *relatedNames) dest() []any {
	return []any{&n.patientID, &n.patientFirst, &n.patientLast, &n.doctorID, &n.doctorFirst, &n.doctorLast}
}

func scanAppointmentDetail(r rowScanner) (*types.AppointmentDetail, error) {
	var names relatedNames
	a, err := scanAppointment(r, names.dest()...)
	if err != nil {
		return nil, err
	}
	detail := &types.AppointmentDetail{Appointment: *a}
	if names.patientID != 0 {
		detail.Patient = &types.Patient{ID: names.patientID, FirstName: names.patientFirst, LastName: names.patientLast, IsActive: true}
	}
	if names.doctorID != 0 {
		detail.Doctor = &types.Doctor{ID: names.doctorID, FirstName: names.doctorFirst, LastName: names.doctorLast, IsActive: true}
	}
	return detail, nil
}

func (s *SQLStore) GetAppointment(ctx context.Context, id int64) (*types.Appointment, error) {
	row := s.queryRow(ctx, "SELECT "+appointmentColumns+" FROM appointments a WHERE a.id = ? AND a.is_active = TRUE", id)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("get appointment %d: %w", id, err)
	}
	return a, nil
}

// GetAppointmentDetail loads an active appointment with the names of its
// active patient and doctor.
func (s *SQLStore) GetAppointmentDetail(ctx context.Context, id int64) (*types.AppointmentDetail, error) {
	row := s.queryRow(ctx, "SELECT "+appointmentColumns+", "+relatedNameColumns+relatedJoin+
		" WHERE a.id = ? AND a.is_active = TRUE", id)
	d, err := scanAppointmentDetail(row)
	if err != nil {
		return nil, fmt.Errorf("get appointment %d: %w", id, err)
	}
	return d, nil
}

func (s *SQLStore) CreateAppointment(ctx context.Context, a *types.Appointment) error {
	now := s.now().UTC()
	err := s.queryRow(ctx, `
		INSERT INTO appointments (patient_id, doctor_id, appointment_date, reason, status, notes,
			is_active, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		a.PatientID, a.DoctorID, FormatTimestamp(a.AppointmentDate), a.Reason, a.Status, a.Notes,
		a.IsActive, FormatTimestamp(now), FormatTimestamp(now),
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	a.CreatedAt, a.ModifiedAt = now, now
	return nil
}

func (s *SQLStore) UpdateAppointment(ctx context.Context, a *types.Appointment) error {
	now := s.now().UTC()
	n, err := s.exec(ctx, `
		UPDATE appointments
		SET patient_id = ?, doctor_id = ?, appointment_date = ?, reason = ?, status = ?, notes = ?,
		    is_active = ?, modified_at = ?
		WHERE id = ?`,
		a.PatientID, a.DoctorID, FormatTimestamp(a.AppointmentDate), a.Reason, a.Status, a.Notes,
		a.IsActive, FormatTimestamp(now), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update appointment %d: %w", a.ID, types.ErrNotFound)
	}
	a.ModifiedAt = now
	return nil
}

// ListAppointments answers the structured appointment query with the
// display names of the related records joined in.
func (s *SQLStore) ListAppointments(ctx context.Context, q types.AppointmentQuery) (pager.Page[types.AppointmentResult], error) {
	b := newSelect("a.is_active = TRUE")
	inList(b, "a.patient_id", q.PatientIDs)
	inList(b, "a.doctor_id", q.DoctorIDs)
	if len(q.Dates) > 0 {
		dates := make([]string, len(q.Dates))
		for i, d := range q.Dates {
			dates[i] = FormatTimestamp(d)
		}
		inList(b, "a.appointment_date", dates)
	}
	inList(b, "a.status", q.Statuses)
	order, err := orderBy(appointmentSortColumns, q.Sort, q.Order, "a.id")
	if err != nil {
		return pager.Page[types.AppointmentResult]{}, err
	}
	return listPage(ctx, s, relatedJoin, b, order, q.PageNumber, q.PageSize,
		appointmentColumns+", "+relatedNameColumns,
		func(r rowScanner) (types.AppointmentResult, error) {
			d, err := scanAppointmentDetail(r)
			if err != nil {
				return types.AppointmentResult{}, err
			}
			return AppointmentResultFromDetail(d), nil
		})
}

// AppointmentResultFromDetail builds the DTO, leaving a name empty when its
// related record is absent.
func AppointmentResultFromDetail(d *types.AppointmentDetail) types.AppointmentResult {
	r := types.AppointmentResult{
		ID:              d.ID,
		PatientID:       d.PatientID,
		DoctorID:        d.DoctorID,
		AppointmentDate: d.AppointmentDate,
		Reason:          d.Reason,
		Status:          d.Status,
		Notes:           d.Notes,
	}
	if d.Patient != nil {
		r.PatientName = d.Patient.FullName()
	}
	if d.Doctor != nil {
		r.DoctorName = d.Doctor.FullName()
	}
	return r
}

func (s *SQLStore) EachActiveAppointment(ctx context.Context, fn func(*types.AppointmentDetail) error) error {
	rows, err := s.query(ctx, "SELECT "+appointmentColumns+", "+relatedNameColumns+relatedJoin+
		" WHERE a.is_active = TRUE ORDER BY a.id")
	if err != nil {
		return fmt.Errorf("failed to iterate appointments: %w", err)
	}
	return eachRow(rows, func(r rowScanner) error {
		d, err := scanAppointmentDetail(r)
		if err != nil {
			return err
		}
		return fn(d)
	})
}

func (s *SQLStore) AppointmentIDsForPatient(ctx context.Context, patientID int64) ([]int64, error) {
	return s.appointmentIDs(ctx, "patient_id", patientID)
}

func (s *SQLStore) AppointmentIDsForDoctor(ctx context.Context, doctorID int64) ([]int64, error) {
	return s.appointmentIDs(ctx, "doctor_id", doctorID)
}

func (s *SQLStore) appointmentIDs(ctx context.Context, col string, id int64) ([]int64, error) {
	rows, err := s.query(ctx, "SELECT id FROM appointments WHERE "+col+" = ? AND is_active = TRUE ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments by %s: %w", col, err)
	}
	ids := make([]int64, 0)
	err = eachRow(rows, func(r rowScanner) error {
		var id int64
		if err := r.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// IsNotFound reports whether err means the record is absent or inactive.
func IsNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
