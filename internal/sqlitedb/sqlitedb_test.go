package sqlitedb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      `CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		Down:    `DROP TABLE IF EXISTS widgets`,
	},
	{
		Version: "1.1.0",
		Up:      `ALTER TABLE widgets ADD COLUMN color TEXT NOT NULL DEFAULT ''`,
		Down:    `ALTER TABLE widgets DROP COLUMN color`,
	},
}

func TestApplyMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := Open(MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	v, err := CurrentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	require.NoError(t, ApplyMigrations(ctx, db, testMigrations))

	v, err = CurrentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v.String())

	_, err = db.ExecContext(ctx, `INSERT INTO widgets (name, color) VALUES ('a', 'red')`)
	require.NoError(t, err)

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, ApplyMigrations(ctx, db, testMigrations))
		var n int
		require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&n))
		assert.Equal(t, 2, n)
	})

	t.Run("rollback latest", func(t *testing.T) {
		require.NoError(t, RollbackMigration(ctx, db, testMigrations))
		v, err := CurrentVersion(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, "1.0.0", v.String())
	})
}

func TestOpenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestInvalidMigrationVersion(t *testing.T) {
	db, err := Open(MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	err = ApplyMigrations(context.Background(), db, []Migration{{Version: "not-a-version", Up: "SELECT 1"}})
	assert.Error(t, err)
}
