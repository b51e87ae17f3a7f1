package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/rpp-data-etl-service/internal/database"
	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
)

// ErrMetroPhaseRequired is returned when the state phase runs without a
// committed metro phase.
var ErrMetroPhaseRequired = errors.New("state phase requires a committed metro phase")

// ArtifactReader loads the raw artifacts of every class.
type ArtifactReader interface {
	ReadAll() (map[domain.Class]domain.Artifact, error)
}

// MetroPhase is returned by a committed metro phase and gates the state phase.
type MetroPhase struct {
	Metros    int
	History   int
	committed bool
}

// LoadReport summarizes a full rebuild of the build store.
type LoadReport struct {
	Metros       int
	MetroHistory int
	States       int
	StateHistory int
	AvgRPPAll    *float64

	MetroStats    domain.ParseStats
	StateStats    domain.ParseStats
	DroppedMetros []string
	DroppedStates []string
	UnmappedGeos  []string
}

// Loader rebuilds the build store from raw artifacts.
type Loader struct {
	artifacts ArtifactReader
	dbPath    string
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewLoader creates a Loader writing to the store at dbPath.
func NewLoader(artifacts ArtifactReader, dbPath string, metrics *observability.Metrics, logger *slog.Logger) *Loader {
	return &Loader{
		artifacts: artifacts,
		dbPath:    dbPath,
		metrics:   metrics,
		logger:    logger,
	}
}

// Load reads and normalizes both artifacts, then recreates the store and
// loads metros followed by states. Nothing is touched on disk when an
// artifact is missing or malformed.
func (l *Loader) Load(ctx context.Context) (LoadReport, error) {
	raws, err := l.artifacts.ReadAll()
	if err != nil {
		return LoadReport{}, fmt.Errorf("read artifacts: %w", err)
	}

	metros := NormalizeMetros(raws[domain.ClassMetro])
	states := NormalizeStates(raws[domain.ClassState])
	l.recordSoftFailures(domain.ClassMetro, metros.Stats, metros.Dropped, nil)
	l.recordSoftFailures(domain.ClassState, states.Stats, states.Dropped, states.Unmapped)

	db, err := database.Recreate(ctx, l.dbPath)
	if err != nil {
		return LoadReport{}, fmt.Errorf("recreate store: %w", err)
	}
	defer db.Close()

	phase, err := LoadMetros(ctx, db, metros)
	if err != nil {
		return LoadReport{}, err
	}
	l.logger.Info("metro phase committed", "msas", phase.Metros, "history", phase.History)

	if err := LoadStates(ctx, db, phase, states); err != nil {
		return LoadReport{}, err
	}

	report, err := summarizeStore(ctx, db)
	if err != nil {
		return LoadReport{}, err
	}
	report.MetroStats = metros.Stats
	report.StateStats = states.Stats
	report.DroppedMetros = metros.Dropped
	report.DroppedStates = states.Dropped
	report.UnmappedGeos = states.Unmapped

	l.metrics.RowsLoaded.WithLabelValues("msas").Add(float64(report.Metros))
	l.metrics.RowsLoaded.WithLabelValues("msa_history").Add(float64(report.MetroHistory))
	l.metrics.RowsLoaded.WithLabelValues("states").Add(float64(report.States))
	l.metrics.RowsLoaded.WithLabelValues("state_history").Add(float64(report.StateHistory))

	l.logger.Info("build complete",
		"msas", report.Metros,
		"msa_history", report.MetroHistory,
		"states", report.States,
		"state_history", report.StateHistory,
		"avg_rpp_all", domain.FormatIndex(report.AvgRPPAll),
		"db_path", l.dbPath,
	)
	return report, nil
}

func (l *Loader) recordSoftFailures(class domain.Class, stats domain.ParseStats, dropped, unmapped []string) {
	c := string(class)
	l.metrics.RecordsParsed.WithLabelValues(c, "ok").Add(float64(stats.Records - stats.Malformed - stats.InvalidValues - stats.Sentinels))
	l.metrics.RecordsParsed.WithLabelValues(c, "malformed").Add(float64(stats.Malformed))
	l.metrics.RecordsParsed.WithLabelValues(c, "invalid_value").Add(float64(stats.InvalidValues))
	l.metrics.RecordsParsed.WithLabelValues(c, "sentinel").Add(float64(stats.Sentinels))
	l.metrics.EntitiesDropped.WithLabelValues(c, "no_composite").Add(float64(len(dropped)))
	l.metrics.EntitiesDropped.WithLabelValues(c, "unmapped_geo").Add(float64(len(unmapped)))

	if stats.Malformed > 0 || stats.InvalidValues > 0 {
		l.logger.Warn("skipped unusable records",
			"class", class,
			"malformed", stats.Malformed,
			"invalid_values", stats.InvalidValues,
		)
	}
	if len(dropped) > 0 {
		l.logger.Info("dropped entities without a composite value", "class", class, "count", len(dropped), "codes", dropped)
	}
	if len(unmapped) > 0 {
		l.logger.Warn("skipped geographies missing from the FIPS table", "class", class, "codes", unmapped)
	}
}

// LoadMetros inserts all metro rows in a single transaction.
func LoadMetros(ctx context.Context, db *sql.DB, batch MetroBatch) (MetroPhase, error) {
	err := withTx(ctx, db, "metro phase", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO msas
			(cbsa, name, slug, state_abbr, rpp_all, rpp_goods, rpp_services, rpp_rents, year, population, median_income)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range batch.Metros {
			if _, err := stmt.ExecContext(ctx,
				m.CBSA, m.Name, m.Slug, m.StateAbbr,
				m.RPPAll, m.RPPGoods, m.RPPServices, m.RPPRents,
				m.Year, m.Population, m.MedianIncome,
			); err != nil {
				return fmt.Errorf("insert msa %s: %w", m.CBSA, err)
			}
		}
		return insertMetroHistory(ctx, tx, batch.History)
	})
	if err != nil {
		return MetroPhase{}, err
	}
	return MetroPhase{Metros: len(batch.Metros), History: len(batch.History), committed: true}, nil
}

// LoadStates counts committed metros per state and inserts all state rows in
// a single transaction.
func LoadStates(ctx context.Context, db *sql.DB, phase MetroPhase, batch StateBatch) error {
	if !phase.committed {
		return ErrMetroPhaseRequired
	}

	return withTx(ctx, db, "state phase", func(tx *sql.Tx) error {
		counts, err := metroCountsByState(ctx, tx)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO states
			(abbr, name, slug, rpp_all, rpp_goods, rpp_services, rpp_rents, year, population, median_income, msa_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range batch.States {
			if _, err := stmt.ExecContext(ctx,
				s.Abbr, s.Name, s.Slug,
				s.RPPAll, s.RPPGoods, s.RPPServices, s.RPPRents,
				s.Year, s.Population, s.MedianIncome, counts[s.Abbr],
			); err != nil {
				return fmt.Errorf("insert state %s: %w", s.Abbr, err)
			}
		}
		return insertStateHistory(ctx, tx, batch.History)
	})
}

func insertMetroHistory(ctx context.Context, tx *sql.Tx, rows []domain.MetroHistory) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO msa_history
		(cbsa, year, rpp_all, rpp_goods, rpp_services, rpp_rents)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, h := range rows {
		if _, err := stmt.ExecContext(ctx, h.CBSA, h.Year, h.RPPAll, h.RPPGoods, h.RPPServices, h.RPPRents); err != nil {
			return fmt.Errorf("insert msa history %s/%d: %w", h.CBSA, h.Year, err)
		}
	}
	return nil
}

func insertStateHistory(ctx context.Context, tx *sql.Tx, rows []domain.StateHistory) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO state_history
		(abbr, year, rpp_all, rpp_goods, rpp_services, rpp_rents)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, h := range rows {
		if _, err := stmt.ExecContext(ctx, h.Abbr, h.Year, h.RPPAll, h.RPPGoods, h.RPPServices, h.RPPRents); err != nil {
			return fmt.Errorf("insert state history %s/%d: %w", h.Abbr, h.Year, err)
		}
	}
	return nil
}

func metroCountsByState(ctx context.Context, tx *sql.Tx) (map[string]int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT state_abbr, COUNT(*) FROM msas
		WHERE state_abbr IS NOT NULL AND state_abbr != ''
		GROUP BY state_abbr`)
	if err != nil {
		return nil, fmt.Errorf("count msas by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var abbr string
		var n int
		if err := rows.Scan(&abbr, &n); err != nil {
			return nil, fmt.Errorf("scan msa count: %w", err)
		}
		counts[abbr] = n
	}
	return counts, rows.Err()
}

func summarizeStore(ctx context.Context, db *sql.DB) (LoadReport, error) {
	var r LoadReport
	err := db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM msas),
		(SELECT COUNT(*) FROM msa_history),
		(SELECT COUNT(*) FROM states),
		(SELECT COUNT(*) FROM state_history),
		(SELECT AVG(rpp_all) FROM msas)`,
	).Scan(&r.Metros, &r.MetroHistory, &r.States, &r.StateHistory, &r.AvgRPPAll)
	if err != nil {
		return LoadReport{}, fmt.Errorf("summarize store: %w", err)
	}
	return r, nil
}

func withTx(ctx context.Context, db *sql.DB, name string, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", name, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}
