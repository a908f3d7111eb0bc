package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dshills/caresearch/internal/sqlitedb"
	"github.com/dshills/caresearch/pkg/types"
)

// NewSQLiteStore opens (or creates) a SQLite record store and applies migrations.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlitedb.ApplyMigrations(context.Background(), db, AllMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return New(NewSQLConn(db), DialectSQLite), nil
}

// sqlConn adapts *sql.DB to Conn
type sqlConn struct {
	db *sql.DB
}

// NewSQLConn wraps a database/sql handle.
func NewSQLConn(db *sql.DB) Conn {
	return &sqlConn{db: db}
}

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *sqlConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (c *sqlConn) QueryRow(ctx context.Context, query string, args ...any) Row {
	return sqlRow{c.db.QueryRowContext(ctx, query, args...)}
}

func (c *sqlConn) Close() error {
	return c.db.Close()
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	_ = r.Rows.Close()
}

type sqlRow struct {
	row *sql.Row
}

func (r sqlRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ErrNotFound
	}
	return err
}
