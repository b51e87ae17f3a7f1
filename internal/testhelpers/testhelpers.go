package testhelpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/rpp-data-etl-service/internal/database"
	"github.com/stretchr/testify/require"
)

// NewTestDB returns an in-memory SQLite database with the schema applied.
// The database is automatically closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.ApplySchema(context.Background(), db), "apply schema")
	return db
}

// NewStoreFile creates a schema-initialized store file in a temp directory and
// returns its path alongside a writable handle that is closed on cleanup.
func NewStoreFile(t *testing.T) (*sql.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rpp.db")
	db, err := database.Recreate(context.Background(), path)
	require.NoError(t, err, "create store file")
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
