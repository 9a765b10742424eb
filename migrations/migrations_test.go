package migrations

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, dbPath, table string) bool {
	t.Helper()
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestSQLiteUpAndRollback(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "menutree.db")
	runner := Runner{URL: "sqlite3://" + dbPath, Dialect: SQLite}

	_, _, ok, err := runner.Version()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, runner.Up())
	assert.True(t, tableExists(t, dbPath, "menus"))
	assert.True(t, tableExists(t, dbPath, "menu_items"))

	version, dirty, ok, err := runner.Version()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	// applying again is a no-op
	require.NoError(t, runner.Up())

	require.NoError(t, runner.Rollback())
	assert.False(t, tableExists(t, dbPath, "menu_items"))
	assert.True(t, tableExists(t, dbPath, "menus"))

	require.NoError(t, runner.Down())
	assert.False(t, tableExists(t, dbPath, "menus"))
}

func TestUnknownDialect(t *testing.T) {
	err := Runner{URL: "sqlite3://x.db", Dialect: "oracle"}.Up()
	assert.Error(t, err)
}

func TestEmbeddedFiles(t *testing.T) {
	for _, dir := range []string{"postgres", "sqlite"} {
		entries, err := files.ReadDir(dir)
		require.NoError(t, err)
		assert.NotEmpty(t, entries)
		assert.Equal(t, 0, len(entries)%2, "every up migration needs a down migration in %s", dir)
	}
}
