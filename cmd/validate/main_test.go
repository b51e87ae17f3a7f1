package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/rpp-data-etl-service/internal/artifact"
	"github.com/couchcryptid/rpp-data-etl-service/internal/database"
	"github.com/couchcryptid/rpp-data-etl-service/internal/export"
	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
	"github.com/couchcryptid/rpp-data-etl-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureDir = "../../internal/pipeline/testdata"

func buildFixtureStore(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "rpp.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loader := pipeline.NewLoader(artifact.NewStore(fixtureDir), dbPath, observability.NewMetricsForTesting(), logger)
	_, err := loader.Load(context.Background())
	require.NoError(t, err)
	return dbPath
}

func TestRun_PassesOnFreshBuild(t *testing.T) {
	dbPath := buildFixtureStore(t)

	bundleDir := filepath.Join(t.TempDir(), "seed")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exporter := export.NewExporter(dbPath, bundleDir, 2, clockwork.NewFakeClock(), observability.NewMetricsForTesting(), logger)
	_, err := exporter.Export(context.Background())
	require.NoError(t, err)

	var out bytes.Buffer
	code := run(context.Background(), &out, fixtureDir, dbPath, bundleDir)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "Rows: 5 msas, 6 msa_history, 3 states, 4 state_history")
}

func TestRun_DetectsTamperedStore(t *testing.T) {
	dbPath := buildFixtureStore(t)

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE states SET msa_count = msa_count + 1 WHERE abbr = 'TX'")
	require.NoError(t, err)
	_, err = db.Exec("DELETE FROM msa_history WHERE cbsa = (SELECT cbsa FROM msas ORDER BY cbsa LIMIT 1)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var out bytes.Buffer
	code := run(context.Background(), &out, fixtureDir, dbPath, "")

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "states whose msa_count disagrees with msas")
	assert.Contains(t, out.String(), "msas whose snapshot year has no history row")
	assert.Contains(t, out.String(), "msa_history: artifacts yield 6 rows")
	assert.Contains(t, out.String(), "Validation FAILED.")
}

func TestRun_MissingStore(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), &out, fixtureDir, filepath.Join(t.TempDir(), "absent.db"), "")
	assert.Equal(t, 1, code)
}
