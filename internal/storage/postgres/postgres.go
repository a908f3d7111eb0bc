// Package postgres runs the record store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dshills/caresearch/internal/storage"
	"github.com/dshills/caresearch/pkg/types"
)

// PgxIface is the subset of *pgxpool.Pool the store uses. pgxmock pools satisfy it.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Open connects to dsn, applies the schema and returns a record store.
func Open(ctx context.Context, dsn string) (*storage.SQLStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := retryWithBackoff(ctx, DefaultRetryConfig(), pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return New(pool), nil
}

// New wraps an already migrated pool.
func New(pool PgxIface) *storage.SQLStore {
	return storage.New(&conn{pool: pool}, storage.DialectPostgres)
}

// Migrate creates the record tables when they do not exist yet.
func Migrate(ctx context.Context, pool PgxIface) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS doctors (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		specialization TEXT NOT NULL DEFAULT '',
		contact_number TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		schedule TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		modified_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		date_of_birth TEXT NOT NULL DEFAULT '',
		gender TEXT NOT NULL DEFAULT '',
		contact_number TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		medical_history TEXT NOT NULL DEFAULT '',
		allergies TEXT NOT NULL DEFAULT '',
		current_medications TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		modified_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id BIGSERIAL PRIMARY KEY,
		patient_id BIGINT NOT NULL REFERENCES patients(id),
		doctor_id BIGINT NOT NULL REFERENCES doctors(id),
		appointment_date TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		modified_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(patient_id)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_doctor ON appointments(doctor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointments(appointment_date)`,
}

// conn adapts a pgx pool to storage.Conn
type conn struct {
	pool PgxIface
}

func (c *conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *conn) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *conn) QueryRow(ctx context.Context, query string, args ...any) storage.Row {
	return row{c.pool.QueryRow(ctx, query, args...)}
}

func (c *conn) Close() error {
	c.pool.Close()
	return nil
}

type row struct {
	pgx.Row
}

func (r row) Scan(dest ...any) error {
	err := r.Row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ErrNotFound
	}
	return err
}
