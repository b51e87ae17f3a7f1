// Package store exposes typed read queries over a deployed RPP store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/rpp-data-etl-service/internal/database"
	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
)

// DefaultRankingLimit is used by rankings when the caller passes no limit.
const DefaultRankingLimit = 25

// MaxRankingLimit bounds rankings and metro searches.
const MaxRankingLimit = 100

const (
	metroColumns   = "cbsa, name, slug, state_abbr, rpp_all, rpp_goods, rpp_services, rpp_rents, COALESCE(year, 0), population, median_income"
	stateColumns   = "abbr, name, slug, rpp_all, rpp_goods, rpp_services, rpp_rents, COALESCE(year, 0), population, median_income, COALESCE(msa_count, 0)"
	historyColumns = "year, rpp_all, rpp_goods, rpp_services, rpp_rents"
)

// Store runs read-only queries. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the store file at path read-only.
func Open(path string) (*Store, error) {
	db, err := database.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness reports whether the store is reachable and seeded with the schema.
func (s *Store) CheckReadiness(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('msas', 'states')").Scan(&n); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	if n != 2 {
		return errors.New("store has no schema")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetro(r rowScanner) (domain.Metro, error) {
	var m domain.Metro
	var abbr sql.NullString
	err := r.Scan(&m.CBSA, &m.Name, &m.Slug, &abbr,
		&m.RPPAll, &m.RPPGoods, &m.RPPServices, &m.RPPRents,
		&m.Year, &m.Population, &m.MedianIncome)
	m.StateAbbr = abbr.String
	return m, err
}

func scanState(r rowScanner) (domain.State, error) {
	var s domain.State
	err := r.Scan(&s.Abbr, &s.Name, &s.Slug,
		&s.RPPAll, &s.RPPGoods, &s.RPPServices, &s.RPPRents,
		&s.Year, &s.Population, &s.MedianIncome, &s.MSACount)
	return s, err
}

func (s *Store) queryMetros(ctx context.Context, query string, args ...any) ([]domain.Metro, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query msas: %w", err)
	}
	defer rows.Close()

	metros := []domain.Metro{}
	for rows.Next() {
		m, err := scanMetro(rows)
		if err != nil {
			return nil, fmt.Errorf("scan msa: %w", err)
		}
		metros = append(metros, m)
	}
	return metros, rows.Err()
}

// MetroBySlug returns the metro with slug; found is false when none exists.
func (s *Store) MetroBySlug(ctx context.Context, slug string) (domain.Metro, bool, error) {
	m, err := scanMetro(s.db.QueryRowContext(ctx, "SELECT "+metroColumns+" FROM msas WHERE slug = ?", slug))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Metro{}, false, nil
	}
	if err != nil {
		return domain.Metro{}, false, fmt.Errorf("metro by slug: %w", err)
	}
	return m, true, nil
}

// ListMetros returns every metro ordered case-insensitively by name.
func (s *Store) ListMetros(ctx context.Context) ([]domain.Metro, error) {
	return s.queryMetros(ctx, "SELECT "+metroColumns+" FROM msas ORDER BY name COLLATE NOCASE")
}

// MetrosByState returns the metros assigned to a state abbreviation.
func (s *Store) MetrosByState(ctx context.Context, abbr string) ([]domain.Metro, error) {
	return s.queryMetros(ctx, "SELECT "+metroColumns+" FROM msas WHERE state_abbr = ? ORDER BY name COLLATE NOCASE", abbr)
}

// MetroHistory returns every recorded year for a metro, oldest first.
func (s *Store) MetroHistory(ctx context.Context, cbsa string) ([]domain.MetroHistory, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+historyColumns+" FROM msa_history WHERE cbsa = ? ORDER BY year", cbsa)
	if err != nil {
		return nil, fmt.Errorf("query msa history: %w", err)
	}
	defer rows.Close()

	out := []domain.MetroHistory{}
	for rows.Next() {
		h := domain.MetroHistory{CBSA: cbsa}
		if err := rows.Scan(&h.Year, &h.RPPAll, &h.RPPGoods, &h.RPPServices, &h.RPPRents); err != nil {
			return nil, fmt.Errorf("scan msa history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// StateBySlug returns the state with slug; found is false when none exists.
func (s *Store) StateBySlug(ctx context.Context, slug string) (domain.State, bool, error) {
	st, err := scanState(s.db.QueryRowContext(ctx, "SELECT "+stateColumns+" FROM states WHERE slug = ?", slug))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.State{}, false, nil
	}
	if err != nil {
		return domain.State{}, false, fmt.Errorf("state by slug: %w", err)
	}
	return st, true, nil
}

// ListStates returns every state ordered case-insensitively by name.
func (s *Store) ListStates(ctx context.Context) ([]domain.State, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+stateColumns+" FROM states ORDER BY name COLLATE NOCASE")
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	states := []domain.State{}
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// StateHistory returns every recorded year for a state, oldest first.
func (s *Store) StateHistory(ctx context.Context, abbr string) ([]domain.StateHistory, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+historyColumns+" FROM state_history WHERE abbr = ? ORDER BY year", abbr)
	if err != nil {
		return nil, fmt.Errorf("query state history: %w", err)
	}
	defer rows.Close()

	out := []domain.StateHistory{}
	for rows.Next() {
		h := domain.StateHistory{Abbr: abbr}
		if err := rows.Scan(&h.Year, &h.RPPAll, &h.RPPGoods, &h.RPPServices, &h.RPPRents); err != nil {
			return nil, fmt.Errorf("scan state history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func rankingLimit(limit int) int {
	if limit <= 0 {
		return DefaultRankingLimit
	}
	return min(limit, MaxRankingLimit)
}

// MostExpensive returns the metros with the highest composite index.
func (s *Store) MostExpensive(ctx context.Context, limit int) ([]domain.Metro, error) {
	return s.queryMetros(ctx, "SELECT "+metroColumns+" FROM msas ORDER BY rpp_all DESC LIMIT ?", rankingLimit(limit))
}

// LeastExpensive returns the metros with the lowest composite index.
func (s *Store) LeastExpensive(ctx context.Context, limit int) ([]domain.Metro, error) {
	return s.queryMetros(ctx, "SELECT "+metroColumns+" FROM msas ORDER BY rpp_all ASC LIMIT ?", rankingLimit(limit))
}

// HighestRent returns the metros with the highest rents index.
func (s *Store) HighestRent(ctx context.Context, limit int) ([]domain.Metro, error) {
	return s.queryMetros(ctx, "SELECT "+metroColumns+" FROM msas ORDER BY rpp_rents DESC LIMIT ?", rankingLimit(limit))
}

// SearchMetros matches a name substring or an exact code, most populous first.
func (s *Store) SearchMetros(ctx context.Context, query string, limit int) ([]domain.Metro, error) {
	q := strings.TrimSpace(query)
	return s.queryMetros(ctx, `SELECT `+metroColumns+` FROM msas
		WHERE name LIKE ? ESCAPE '\' OR cbsa = ?
		ORDER BY population DESC, name COLLATE NOCASE
		LIMIT ?`, "%"+escapeLike(q)+"%", q, rankingLimit(limit))
}

// NationalStats computes counts and composite/rents extremes in a single read.
func (s *Store) NationalStats(ctx context.Context) (domain.NationalStats, error) {
	var st domain.NationalStats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM msas),
		(SELECT COUNT(*) FROM states),
		MAX(rpp_all), MIN(rpp_all), AVG(rpp_all),
		MAX(rpp_rents), MIN(rpp_rents), AVG(rpp_rents)
		FROM msas`,
	).Scan(&st.MSACount, &st.StateCount,
		&st.MaxRPPAll, &st.MinRPPAll, &st.AvgRPPAll,
		&st.MaxRPPRents, &st.MinRPPRents, &st.AvgRPPRents)
	if err != nil {
		return domain.NationalStats{}, fmt.Errorf("national stats: %w", err)
	}
	return st, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
