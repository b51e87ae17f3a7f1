package store

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
)

const (
	// MinSearchLength is the shortest trimmed query that reaches the store.
	MinSearchLength = 2
	// MaxSearchResults caps the number of search results.
	MaxSearchResults = 15
)

// Result ranks, lowest first.
const (
	rankCode = iota
	rankNamePrefix
	rankState
	rankNameSubstring
)

// searchQuery binds the user input once and ranks each candidate metro:
// code matches, then name prefix, then state abbreviation, then name substring.
// Ties break on the composite index, most expensive first.
var searchQuery = fmt.Sprintf(`WITH q(code, code_prefix, by_code, name_prefix, abbr, by_abbr, name_sub) AS (
  SELECT ?, ?, ?, ?, ?, ?, ?
)
SELECT m.cbsa, m.name, m.slug, m.state_abbr, m.rpp_all, m.rpp_goods, m.rpp_services, m.rpp_rents
FROM msas m, q
WHERE m.cbsa = q.code
   OR (q.by_code AND m.cbsa LIKE q.code_prefix ESCAPE '\')
   OR m.name LIKE q.name_prefix ESCAPE '\'
   OR (q.by_abbr AND m.state_abbr = q.abbr)
   OR m.name LIKE q.name_sub ESCAPE '\'
ORDER BY
  CASE
    WHEN m.cbsa = q.code OR (q.by_code AND m.cbsa LIKE q.code_prefix ESCAPE '\') THEN %d
    WHEN m.name LIKE q.name_prefix ESCAPE '\' THEN %d
    WHEN q.by_abbr AND m.state_abbr = q.abbr THEN %d
    ELSE %d
  END,
  m.rpp_all DESC,
  m.name COLLATE NOCASE
LIMIT ?`, rankCode, rankNamePrefix, rankState, rankNameSubstring)

// NormalizeQuery trims the raw query and reports whether it is long enough to search.
func NormalizeQuery(raw string) (string, bool) {
	q := strings.TrimSpace(raw)
	return q, len([]rune(q)) >= MinSearchLength
}

// SearchLimit clamps a requested limit into [1, MaxSearchResults]; non-positive means the max.
func SearchLimit(limit int) int {
	if limit <= 0 || limit > MaxSearchResults {
		return MaxSearchResults
	}
	return limit
}

// Search runs the endpoint search. Queries shorter than MinSearchLength after
// trimming return no results without touching the database.
func (s *Store) Search(ctx context.Context, raw string, limit int) ([]domain.SearchResult, error) {
	q, ok := NormalizeQuery(raw)
	if !ok {
		return []domain.SearchResult{}, nil
	}

	escaped := escapeLike(q)
	byCode := isCodePrefix(q)
	byAbbr := isStateAbbr(q)

	rows, err := s.db.QueryContext(ctx, searchQuery,
		q, escaped+"%", byCode, escaped+"%", strings.ToUpper(q), byAbbr, "%"+escaped+"%",
		SearchLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search msas: %w", err)
	}
	defer rows.Close()

	results := []domain.SearchResult{}
	for rows.Next() {
		var r domain.SearchResult
		var abbr *string
		if err := rows.Scan(&r.CBSA, &r.Name, &r.Slug, &abbr,
			&r.RPPAll, &r.RPPGoods, &r.RPPServices, &r.RPPRents); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		if abbr != nil {
			r.StateAbbr = *abbr
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// isCodePrefix reports whether q looks like the start of a CBSA code.
func isCodePrefix(q string) bool {
	if len(q) < 2 || len(q) > 5 {
		return false
	}
	for _, r := range q {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isStateAbbr(q string) bool {
	if len(q) != 2 {
		return false
	}
	for _, r := range q {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
