package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleArtifact() domain.Artifact {
	return domain.Artifact{
		"all": {
			{GeoFips: "12420", GeoName: "Austin-Round Rock-San Marcos, TX (Metropolitan Statistical Area)", TimePeriod: "2022", DataValue: "103.4", CLUnit: "Percent"},
		},
		"goods": {},
	}
}

func TestStore_WriteRead(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "raw"))

	require.NoError(t, s.Write(domain.ClassMetro, sampleArtifact()))

	got, err := s.Read(domain.ClassMetro)
	require.NoError(t, err)
	assert.Equal(t, sampleArtifact(), got)
	assert.Equal(t, "msa_rpp.json", filepath.Base(s.Path(domain.ClassMetro)))
}

func TestStore_WriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	require.NoError(t, s.Write(domain.ClassState, sampleArtifact()))
	require.NoError(t, s.Write(domain.ClassState, domain.Artifact{"all": {}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state_rpp.json", entries[0].Name())

	got, err := s.Read(domain.ClassState)
	require.NoError(t, err)
	assert.Empty(t, got["all"])
}

func TestStore_ReadMissing(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Read(domain.ClassMetro)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ReadMalformed(t *testing.T) {
	tests := map[string]string{
		"truncated":          `{"all": [`,
		"array":              `[1, 2, 3]`,
		"null":               `null`,
		"records not a list": `{"all": {"GeoFips": "12420"}}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "msa_rpp.json"), []byte(body), 0o644))

			_, err := NewStore(dir).Read(domain.ClassMetro)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestStore_ReadNumericFields(t *testing.T) {
	dir := t.TempDir()
	body := `{"all": [
		{"GeoFips": "12420", "GeoName": "Austin", "TimePeriod": "2022", "DataValue": "103.2"},
		{"GeoFips": "19100", "GeoName": "Dallas", "TimePeriod": 2022, "DataValue": 91.5},
		{"GeoFips": "27260", "GeoName": "Jacksonville", "TimePeriod": "2022", "DataValue": null}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "msa_rpp.json"), []byte(body), 0o644))

	got, err := NewStore(dir).Read(domain.ClassMetro)
	require.NoError(t, err)
	require.Len(t, got["all"], 3)
	assert.Equal(t, "103.2", got["all"][0].DataValue)
	assert.Equal(t, "2022", got["all"][1].TimePeriod)
	assert.Equal(t, "91.5", got["all"][1].DataValue)
	assert.Empty(t, got["all"][2].DataValue)
}

func TestStore_ReadAllFailsOnMissingClass(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.Write(domain.ClassMetro, sampleArtifact()))

	_, err := s.ReadAll()
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "state_rpp.json")
}
