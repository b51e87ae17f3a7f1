package database_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/rpp-data-etl-service/internal/database"
	"github.com/couchcryptid/rpp-data-etl-service/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	require.NoError(t, db.Ping())

	// In-memory databases report "memory" instead of "wal".
	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Contains(t, []string{"wal", "memory"}, journalMode)
}

func TestApplySchema_Idempotent(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	require.NoError(t, database.ApplySchema(context.Background(), db))

	for _, table := range []string{"msas", "msa_history", "states", "state_history", "_stats"} {
		var n int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestRecreate_DropsExistingData(t *testing.T) {
	ctx := context.Background()
	db, path := testhelpers.NewStoreFile(t)

	_, err := db.Exec("INSERT INTO states (abbr, name, slug) VALUES ('TX', 'Texas', 'texas')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	fresh, err := database.Recreate(ctx, path)
	require.NoError(t, err)
	defer fresh.Close()

	var n int
	require.NoError(t, fresh.QueryRow("SELECT COUNT(*) FROM states").Scan(&n))
	assert.Zero(t, n)
}

func TestOpenReadOnly_Missing(t *testing.T) {
	_, err := database.OpenReadOnly(filepath.Join(t.TempDir(), "absent.db"))
	require.ErrorIs(t, err, database.ErrStoreNotFound)
}

func TestOpenReadOnly_RejectsWrites(t *testing.T) {
	db, path := testhelpers.NewStoreFile(t)
	require.NoError(t, db.Close())

	ro, err := database.OpenReadOnly(path)
	require.NoError(t, err)
	defer ro.Close()

	var n int
	require.NoError(t, ro.QueryRow("SELECT COUNT(*) FROM msas").Scan(&n))

	_, err = ro.Exec("INSERT INTO states (abbr, name) VALUES ('TX', 'Texas')")
	require.Error(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestSplitStatements(t *testing.T) {
	script := `-- leading comment
CREATE TABLE a (x INTEGER);

CREATE TABLE b (
  y TEXT
);
SELECT 1`

	stmts := database.SplitStatements(script)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE a (x INTEGER);", stmts[0])
	assert.Equal(t, "CREATE TABLE b (\n  y TEXT\n);", stmts[1])
	assert.Equal(t, "SELECT 1", stmts[2])
}

func TestSchemaCoversExportTables(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	for _, table := range database.Tables {
		rows, err := db.Query("SELECT " + strings.Join(table.Columns, ", ") + " FROM " + table.Name + " ORDER BY " + table.OrderBy)
		require.NoError(t, err, table.Name)
		require.NoError(t, rows.Close())
	}
}
