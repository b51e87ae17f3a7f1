package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/couchcryptid/rpp-data-etl-service/internal/artifact"
	"github.com/couchcryptid/rpp-data-etl-service/internal/database"
	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/couchcryptid/rpp-data-etl-service/internal/export"
	"github.com/couchcryptid/rpp-data-etl-service/internal/pipeline"
)

// sources holds everything the phases compare.
type sources struct {
	artifacts map[domain.Class]domain.Artifact
	metros    pipeline.MetroBatch
	states    pipeline.StateBatch
	db        *sql.DB
	counts    map[string]int
}

func loadSources(ctx context.Context, rawDir, dbPath string) (*sources, error) {
	raws, err := artifact.NewStore(rawDir).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}
	db, err := database.OpenReadOnly(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	counts := make(map[string]int, len(database.Tables))
	for _, t := range database.Tables {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.Name).Scan(&n); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("count %s: %w", t.Name, err)
		}
		counts[t.Name] = n
	}

	return &sources{
		artifacts: raws,
		metros:    pipeline.NormalizeMetros(raws[domain.ClassMetro]),
		states:    pipeline.NormalizeStates(raws[domain.ClassState]),
		db:        db,
		counts:    counts,
	}, nil
}

// ── Phase 1: Raw Artifacts ──
// Every category is present with at least one parseable record.

func validateArtifacts(src *sources) *phase {
	p := &phase{name: "Phase 1: Raw Artifacts (JSON)"}

	for _, class := range domain.Classes {
		a := src.artifacts[class]
		for _, cat := range domain.Categories {
			if len(a[string(cat)]) == 0 {
				p.errorf("%s: category %q has no records", class, cat)
			}
		}
		for label := range a {
			if !domain.Category(label).Valid() {
				p.errorf("%s: unknown category %q", class, label)
			}
		}
	}

	for class, stats := range map[domain.Class]domain.ParseStats{
		domain.ClassMetro: src.metros.Stats,
		domain.ClassState: src.states.Stats,
	} {
		if stats.Records > 0 && stats.Malformed == stats.Records {
			p.errorf("%s: all %d records are malformed", class, stats.Records)
		}
	}
	return p
}

// ── Phase 2: Store Invariants ──

func validateStore(ctx context.Context, src *sources) *phase {
	p := &phase{name: "Phase 2: Store Invariants (SQLite)"}

	checks := []struct {
		desc  string
		query string
	}{
		{"msas without composite index", "SELECT COUNT(*) FROM msas WHERE rpp_all IS NULL"},
		{"states without composite index", "SELECT COUNT(*) FROM states WHERE rpp_all IS NULL"},
		{"msa_history rows without composite index", "SELECT COUNT(*) FROM msa_history WHERE rpp_all IS NULL"},
		{"state_history rows without composite index", "SELECT COUNT(*) FROM state_history WHERE rpp_all IS NULL"},
		{"msas whose snapshot year has no history row",
			"SELECT COUNT(*) FROM msas m WHERE NOT EXISTS (SELECT 1 FROM msa_history h WHERE h.cbsa = m.cbsa AND h.year = m.year)"},
		{"msas with a later history year than the snapshot",
			"SELECT COUNT(*) FROM msas m WHERE EXISTS (SELECT 1 FROM msa_history h WHERE h.cbsa = m.cbsa AND h.year > m.year)"},
		{"states whose msa_count disagrees with msas",
			"SELECT COUNT(*) FROM states s WHERE s.msa_count != (SELECT COUNT(*) FROM msas m WHERE m.state_abbr = s.abbr)"},
		{"history rows for unknown msas",
			"SELECT COUNT(*) FROM msa_history h WHERE NOT EXISTS (SELECT 1 FROM msas m WHERE m.cbsa = h.cbsa)"},
	}
	for _, c := range checks {
		var n int
		if err := src.db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			p.errorf("%s: %v", c.desc, err)
			continue
		}
		if n > 0 {
			p.errorf("%d %s", n, c.desc)
		}
	}
	return p
}

// ── Phase 3: Cross-Source Counts ──
// Re-normalizing the artifacts must reproduce the stored row counts.

func validateCrossSource(src *sources) *phase {
	p := &phase{name: "Phase 3: Cross-Source Counts (JSON vs SQLite)"}

	expected := map[string]int{
		"msas":          len(src.metros.Metros),
		"msa_history":   len(src.metros.History),
		"states":        len(src.states.States),
		"state_history": len(src.states.History),
	}
	for _, t := range database.Tables {
		if got, want := src.counts[t.Name], expected[t.Name]; got != want {
			p.errorf("%s: artifacts yield %d rows, store has %d", t.Name, want, got)
		}
	}
	return p
}

// ── Phase 4: Bundle ──

func validateBundle(dir string, src *sources) *phase {
	p := &phase{name: "Phase 4: Bundle (manifest vs SQLite)"}

	m, err := export.Verify(dir)
	if err != nil {
		p.errorf("verify: %v", err)
		return p
	}
	for _, t := range database.Tables {
		if got, want := m.TableRows[t.Name], src.counts[t.Name]; got != want {
			p.errorf("%s: manifest lists %d rows, store has %d", t.Name, got, want)
		}
	}
	return p
}
