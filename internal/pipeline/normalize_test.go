package pipeline

import (
	"testing"

	"github.com/couchcryptid/rpp-data-etl-service/internal/artifact"
	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureArtifacts(t *testing.T) map[domain.Class]domain.Artifact {
	t.Helper()
	raws, err := artifact.NewStore("testdata").ReadAll()
	require.NoError(t, err)
	return raws
}

func metroByCode(t *testing.T, metros []domain.Metro, code string) domain.Metro {
	t.Helper()
	for _, m := range metros {
		if m.CBSA == code {
			return m
		}
	}
	t.Fatalf("metro %s not found", code)
	return domain.Metro{}
}

func TestNormalizeMetros_Fixture(t *testing.T) {
	batch := NormalizeMetros(fixtureArtifacts(t)[domain.ClassMetro])

	assert.Equal(t, domain.ParseStats{Records: 16, Malformed: 2, InvalidValues: 1, Sentinels: 4}, batch.Stats)
	assert.Equal(t, []string{"10180"}, batch.Dropped)
	require.Len(t, batch.Metros, 5)
	assert.Len(t, batch.History, 6)

	austin := metroByCode(t, batch.Metros, "12420")
	assert.Equal(t, "Austin-Round Rock-San Marcos, TX", austin.Name)
	assert.Equal(t, "austin-round-rock-san-marcos-tx", austin.Slug)
	assert.Equal(t, "TX", austin.StateAbbr)
	assert.Equal(t, 2021, austin.Year)
	assert.InDelta(t, 103.4, *austin.RPPAll, 1e-9)
	assert.InDelta(t, 98.0, *austin.RPPGoods, 1e-9)
	assert.InDelta(t, 105.1, *austin.RPPServices, 1e-9)
	assert.Nil(t, austin.RPPRents, "not-disclosed rents stay absent")
	assert.Nil(t, austin.Population)
	assert.Nil(t, austin.MedianIncome)

	dallas := metroByCode(t, batch.Metros, "19100")
	assert.Nil(t, dallas.RPPGoods, "non-numeric value becomes absent")

	assert.Equal(t, "OH", metroByCode(t, batch.Metros, "17140").StateAbbr)
	assert.Equal(t, "jacksonville-fl", metroByCode(t, batch.Metros, "27260").Slug)
	assert.Equal(t, "jacksonville-fl-27261", metroByCode(t, batch.Metros, "27261").Slug)
}

func TestNormalizeMetros_HistorySkipsYearsWithoutComposite(t *testing.T) {
	batch := NormalizeMetros(fixtureArtifacts(t)[domain.ClassMetro])

	var years []int
	for _, h := range batch.History {
		if h.CBSA == "12420" {
			years = append(years, h.Year)
		}
	}
	assert.Equal(t, []int{2019, 2021}, years)
}

func TestNormalizeMetros_LatestYearSkipsAbsentComposite(t *testing.T) {
	a := domain.Artifact{"all": {
		{GeoFips: "00001", GeoName: "Test, TX", TimePeriod: "2019", DataValue: "101"},
		{GeoFips: "00001", GeoName: "Test, TX", TimePeriod: "2020", DataValue: "(NA)"},
		{GeoFips: "00001", GeoName: "Test, TX", TimePeriod: "2021", DataValue: "103"},
		{GeoFips: "00002", GeoName: "Later, TX", TimePeriod: "2021", DataValue: "97"},
		{GeoFips: "00002", GeoName: "Later, TX", TimePeriod: "2022", DataValue: ""},
	}}

	batch := NormalizeMetros(a)
	require.Len(t, batch.Metros, 2)
	assert.Equal(t, 2021, batch.Metros[0].Year)
	assert.Equal(t, 2021, batch.Metros[1].Year)
}

func TestNormalizeMetros_NoCompositeContributesNothing(t *testing.T) {
	a := domain.Artifact{
		"all": {
			{GeoFips: "00001", GeoName: "Ghost, TX", TimePeriod: "2021", DataValue: "(D)"},
		},
		"goods": {
			{GeoFips: "00001", GeoName: "Ghost, TX", TimePeriod: "2021", DataValue: "99.0"},
		},
	}

	batch := NormalizeMetros(a)
	assert.Empty(t, batch.Metros)
	assert.Empty(t, batch.History)
	assert.Equal(t, []string{"00001"}, batch.Dropped)
}

func TestNormalizeMetros_DeterministicSlugs(t *testing.T) {
	raw := fixtureArtifacts(t)[domain.ClassMetro]
	first := NormalizeMetros(raw)
	second := NormalizeMetros(raw)

	assert.Equal(t, first.Metros, second.Metros)

	seen := make(map[string]bool)
	for _, m := range first.Metros {
		assert.False(t, seen[m.Slug], "duplicate slug %s", m.Slug)
		seen[m.Slug] = true
	}
}

func TestNormalizeStates_Fixture(t *testing.T) {
	batch := NormalizeStates(fixtureArtifacts(t)[domain.ClassState])

	assert.Equal(t, []string{"00000"}, batch.Unmapped)
	assert.Equal(t, []string{"CA"}, batch.Dropped)
	require.Len(t, batch.States, 3)
	assert.Len(t, batch.History, 4)

	tx := batch.States[0]
	assert.Equal(t, "TX", tx.Abbr)
	assert.Equal(t, "Texas", tx.Name)
	assert.Equal(t, "texas", tx.Slug)
	assert.Equal(t, 2021, tx.Year)
	assert.InDelta(t, 99.1, *tx.RPPAll, 1e-9)
	assert.InDelta(t, 101.9, *tx.RPPRents, 1e-9)
	assert.Zero(t, tx.MSACount)
}

func TestNormalizeStates_TwoDigitCodes(t *testing.T) {
	a := domain.Artifact{"all": {
		{GeoFips: "11", GeoName: "District of Columbia", TimePeriod: "2022", DataValue: "110.0"},
		{GeoFips: "36000", GeoName: "New York", TimePeriod: "2022", DataValue: "108.2"},
	}}

	batch := NormalizeStates(a)
	require.Len(t, batch.States, 2)
	assert.Equal(t, "district-of-columbia", batch.States[0].Slug)
	assert.Equal(t, "new-york", batch.States[1].Slug)
}
