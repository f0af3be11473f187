package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestSourceVersions(t *testing.T) {
	for _, dialect := range []Dialect{Postgres, SQLite} {
		src, err := Source(dialect)
		require.NoError(t, err, dialect)

		first, err := src.First()
		require.NoError(t, err)
		assert.Equal(t, uint(1), first)

		next, err := src.Next(first)
		require.NoError(t, err)
		assert.Equal(t, uint(2), next)

		require.NoError(t, src.Close())
	}
}

func TestSourceRejectsUnknownDialect(t *testing.T) {
	_, err := Source("mysql")
	require.Error(t, err)
}

func TestUpSQLiteIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "steam.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	version, err := Up(ctx, db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	version, err = Up(ctx, db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	_, err = db.ExecContext(ctx, `INSERT INTO users (steam_id, steam_name) VALUES (?, ?)`, "76561198000000000", "gordon")
	require.NoError(t, err)

	var name string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT steam_name FROM users WHERE steam_id = ?`, "76561198000000000").Scan(&name))
	assert.Equal(t, "gordon", name)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM auth_sessions`).Scan(&n))
	assert.Zero(t, n)
}

func TestUpRequiresDatabase(t *testing.T) {
	_, err := Up(context.Background(), nil, SQLite)
	require.Error(t, err)
}

func TestVersionReportsDirtySchema(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "steam.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	version, dirty, err := Version(ctx, db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	_, err = Up(ctx, db, SQLite)
	require.NoError(t, err)

	version, dirty, err = Version(ctx, db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	_, err = db.ExecContext(ctx, `UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)

	version, dirty, err = Version(ctx, db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.True(t, dirty)
}

func TestVersionRequiresDatabase(t *testing.T) {
	_, _, err := Version(context.Background(), nil, SQLite)
	require.Error(t, err)
}
