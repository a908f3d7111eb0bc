package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/caresearch/pkg/types"
)

var doctorCols = []string{
	"id", "user_id", "first_name", "last_name", "specialization", "contact_number",
	"email", "schedule", "is_active", "created_at", "modified_at",
}

const ts = "2025-01-02T03:04:05.000000Z"

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)
	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateFailure(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS doctors").WillReturnError(errors.New("permission denied"))

	err := Migrate(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestListDoctorsUsesNumberedPlaceholders(t *testing.T) {
	mock := newMock(t)
	store := New(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM doctors WHERE is_active = TRUE AND user_id IN ($1,$2)`)).
		WithArgs(int64(7), int64(8)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM doctors WHERE is_active = TRUE AND user_id IN ($1,$2) ORDER BY last_name ASC, id ASC LIMIT $3 OFFSET $4`)).
		WithArgs(int64(7), int64(8), 10, 0).
		WillReturnRows(pgxmock.NewRows(doctorCols).
			AddRow(int64(1), int64(7), "Gregory", "House", "Diagnostics", "", "", "", true, ts, ts))

	res, err := store.ListDoctors(context.Background(), types.DoctorQuery{
		UserIDs:      []int64{7, 8},
		SearchParams: types.SearchParams{Sort: []string{"lastName"}, PageNumber: 1, PageSize: 10},
	})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "House", res.Data[0].LastName)
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, 2025, res.Data[0].CreatedAt.Year())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDoctorNotFound(t *testing.T) {
	mock := newMock(t)
	store := New(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM doctors WHERE id = $1 AND is_active = TRUE`)).
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows(doctorCols))

	_, err := store.GetDoctor(context.Background(), 99)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDoctorNoRows(t *testing.T) {
	mock := newMock(t)
	store := New(mock)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE doctors`)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), false, pgxmock.AnyArg(), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateDoctor(context.Background(), &types.Doctor{ID: 5, IsActive: false})
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePatientReturnsID(t *testing.T) {
	mock := newMock(t)
	store := New(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO patients`)).
		WithArgs(int64(3), "Jane", "Roe", "", "", "", "", "", "", "", true, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(41)))

	p := &types.Patient{UserID: 3, FirstName: "Jane", LastName: "Roe", IsActive: true}
	require.NoError(t, store.CreatePatient(context.Background(), p))
	assert.Equal(t, int64(41), p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
