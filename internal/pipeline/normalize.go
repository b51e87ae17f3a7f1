package pipeline

import (
	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
)

// MetroBatch is the normalized content of the metro artifact.
type MetroBatch struct {
	Metros  []domain.Metro
	History []domain.MetroHistory
	Stats   domain.ParseStats
	// Dropped lists codes of metros without any composite value.
	Dropped []string
}

// StateBatch is the normalized content of the state artifact. MSACount is
// left zero; the state phase fills it from the committed metro table.
type StateBatch struct {
	States  []domain.State
	History []domain.StateHistory
	Stats   domain.ParseStats
	Dropped []string
	// Unmapped lists geo codes with no entry in the FIPS table.
	Unmapped []string
}

// NormalizeMetros groups metro observations by code and derives snapshot and
// history rows. Slugs are assigned in first-seen order.
func NormalizeMetros(a domain.Artifact) MetroBatch {
	set := domain.NewSeriesSet()
	stats := domain.ParseArtifact(a, func(obs domain.Observation) {
		set.Add(obs.GeoCode, obs)
	})

	batch := MetroBatch{Stats: stats}
	slugs := domain.NewSlugSet()
	set.Each(func(s *domain.Series) {
		year, latest, ok := s.Latest()
		if !ok {
			batch.Dropped = append(batch.Dropped, s.Key)
			return
		}

		name := domain.CleanMetroName(s.GeoName)
		batch.Metros = append(batch.Metros, domain.Metro{
			CBSA:        s.Key,
			Name:        name,
			Slug:        slugs.Assign(name, s.Key),
			StateAbbr:   domain.ExtractStateAbbr(s.GeoName),
			RPPAll:      latest.All,
			RPPGoods:    latest.Goods,
			RPPServices: latest.Services,
			RPPRents:    latest.Rents,
			Year:        year,
		})
		for _, yb := range s.Complete() {
			batch.History = append(batch.History, domain.MetroHistory{
				CBSA:        s.Key,
				Year:        yb.Year,
				RPPAll:      yb.All,
				RPPGoods:    yb.Goods,
				RPPServices: yb.Services,
				RPPRents:    yb.Rents,
			})
		}
	})
	return batch
}

// NormalizeStates translates FIPS codes to postal abbreviations, groups
// observations per state, and derives snapshot and history rows.
func NormalizeStates(a domain.Artifact) StateBatch {
	set := domain.NewSeriesSet()
	var batch StateBatch
	unmapped := make(map[string]struct{})

	batch.Stats = domain.ParseArtifact(a, func(obs domain.Observation) {
		abbr, ok := domain.StateAbbrForFIPS(obs.GeoCode)
		if !ok {
			if _, seen := unmapped[obs.GeoCode]; !seen {
				unmapped[obs.GeoCode] = struct{}{}
				batch.Unmapped = append(batch.Unmapped, obs.GeoCode)
			}
			return
		}
		set.Add(abbr, obs)
	})

	set.Each(func(s *domain.Series) {
		year, latest, ok := s.Latest()
		if !ok {
			batch.Dropped = append(batch.Dropped, s.Key)
			return
		}

		name := domain.StateName(s.Key)
		batch.States = append(batch.States, domain.State{
			Abbr:        s.Key,
			Name:        name,
			Slug:        domain.StateSlug(name),
			RPPAll:      latest.All,
			RPPGoods:    latest.Goods,
			RPPServices: latest.Services,
			RPPRents:    latest.Rents,
			Year:        year,
		})
		for _, yb := range s.Complete() {
			batch.History = append(batch.History, domain.StateHistory{
				Abbr:        s.Key,
				Year:        yb.Year,
				RPPAll:      yb.All,
				RPPGoods:    yb.Goods,
				RPPServices: yb.Services,
				RPPRents:    yb.Rents,
			})
		}
	})
	return batch
}
