package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/rpp-data-etl-service/internal/adapter/http"
	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
	"github.com/couchcryptid/rpp-data-etl-service/internal/testhelpers"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	metros      map[string]domain.Metro
	states      map[string]domain.State
	searchCalls int
	searchLimit int
	results     []domain.SearchResult
	rankLimit   int
	onStats     func()
	err         error
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		metros: map[string]domain.Metro{
			"austin-tx": {CBSA: "12420", Name: "Austin, TX", Slug: "austin-tx", StateAbbr: "TX", RPPAll: testhelpers.Ptr(110.0), Year: 2023},
			"dayton-oh": {CBSA: "19430", Name: "Dayton, OH", Slug: "dayton-oh", StateAbbr: "OH", RPPAll: testhelpers.Ptr(95.0), Year: 2023},
			"empty":     {CBSA: "00001", Name: "Empty", Slug: "empty"},
		},
		states: map[string]domain.State{
			"texas": {Abbr: "TX", Name: "Texas", Slug: "texas", RPPAll: testhelpers.Ptr(97.5), MSACount: 1},
		},
		results: []domain.SearchResult{{CBSA: "12420", Name: "Austin, TX", Slug: "austin-tx"}},
	}
}

func (f *fakeQuerier) MetroBySlug(_ context.Context, slug string) (domain.Metro, bool, error) {
	m, ok := f.metros[slug]
	return m, ok, f.err
}

func (f *fakeQuerier) ListMetros(context.Context) ([]domain.Metro, error) {
	return []domain.Metro{f.metros["austin-tx"], f.metros["dayton-oh"]}, f.err
}

func (f *fakeQuerier) MetrosByState(_ context.Context, abbr string) ([]domain.Metro, error) {
	var out []domain.Metro
	for _, m := range f.metros {
		if m.StateAbbr == abbr {
			out = append(out, m)
		}
	}
	return out, f.err
}

func (f *fakeQuerier) MetroHistory(_ context.Context, cbsa string) ([]domain.MetroHistory, error) {
	return []domain.MetroHistory{{CBSA: cbsa, Year: 2022}, {CBSA: cbsa, Year: 2023}}, f.err
}

func (f *fakeQuerier) StateBySlug(_ context.Context, slug string) (domain.State, bool, error) {
	s, ok := f.states[slug]
	return s, ok, f.err
}

func (f *fakeQuerier) ListStates(context.Context) ([]domain.State, error) {
	return []domain.State{f.states["texas"]}, f.err
}

func (f *fakeQuerier) StateHistory(_ context.Context, abbr string) ([]domain.StateHistory, error) {
	return []domain.StateHistory{{Abbr: abbr, Year: 2023}}, f.err
}

func (f *fakeQuerier) rank(limit int) ([]domain.Metro, error) {
	f.rankLimit = limit
	return []domain.Metro{f.metros["austin-tx"]}, f.err
}

func (f *fakeQuerier) MostExpensive(_ context.Context, limit int) ([]domain.Metro, error) {
	return f.rank(limit)
}

func (f *fakeQuerier) LeastExpensive(_ context.Context, limit int) ([]domain.Metro, error) {
	return f.rank(limit)
}

func (f *fakeQuerier) HighestRent(_ context.Context, limit int) ([]domain.Metro, error) {
	return f.rank(limit)
}

func (f *fakeQuerier) Search(_ context.Context, _ string, limit int) ([]domain.SearchResult, error) {
	f.searchCalls++
	f.searchLimit = limit
	return f.results, f.err
}

func (f *fakeQuerier) NationalStats(context.Context) (domain.NationalStats, error) {
	if f.onStats != nil {
		f.onStats()
	}
	return domain.NationalStats{MSACount: 3, StateCount: 1, MaxRPPAll: testhelpers.Ptr(110.0)}, f.err
}

func newTestAPI(q httpadapter.Querier, cacheSize int) (*httpadapter.API, *observability.Metrics) {
	api, m, _ := newTimedTestAPI(q, cacheSize)
	return api, m
}

func newTimedTestAPI(q httpadapter.Querier, cacheSize int) (*httpadapter.API, *observability.Metrics, *clockwork.FakeClock) {
	m := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClock()
	return httpadapter.NewAPI(q, cacheSize, clock, m, logger), m, clock
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type searchBody struct {
	Results []domain.SearchResult `json:"results"`
	Query   string                `json:"query"`
}

func TestSearch_ShortQuerySkipsStore(t *testing.T) {
	q := newFakeQuerier()
	api, m := newTestAPI(q, 10)

	for _, target := range []string{"/api/search", "/api/search?q=a", "/api/search?q=%20%20x%20"} {
		rec := get(t, api, target)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"results":[],"query":""}`, rec.Body.String())
		assert.Equal(t, "public, max-age=300, s-maxage=3600", rec.Header().Get("Cache-Control"))
	}
	assert.Zero(t, q.searchCalls)
	assert.InDelta(t, 3, testutil.ToFloat64(m.SearchRequests.WithLabelValues("short")), 0)
}

func TestSearch_ReturnsTrimmedQueryAndCaches(t *testing.T) {
	q := newFakeQuerier()
	api, m := newTestAPI(q, 10)

	rec := get(t, api, "/api/search?q=%20austin%20")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=300, s-maxage=3600", rec.Header().Get("Cache-Control"))

	body := decode[searchBody](t, rec)
	assert.Equal(t, "austin", body.Query)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "12420", body.Results[0].CBSA)

	rec = get(t, api, "/api/search?q=austin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, q.searchCalls)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SearchRequests.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SearchRequests.WithLabelValues("miss")), 0)
}

func TestSearch_CacheDisabled(t *testing.T) {
	q := newFakeQuerier()
	api, _ := newTestAPI(q, 0)

	get(t, api, "/api/search?q=austin")
	get(t, api, "/api/search?q=austin")
	assert.Equal(t, 2, q.searchCalls)
}

func TestSearch_LimitClamped(t *testing.T) {
	tests := []struct {
		target string
		want   int
	}{
		{"/api/search?q=austin", 15},
		{"/api/search?q=austin&limit=5", 5},
		{"/api/search?q=austin&limit=50", 15},
		{"/api/search?q=austin&limit=abc", 15},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			q := newFakeQuerier()
			api, _ := newTestAPI(q, 0)
			get(t, api, tt.target)
			assert.Equal(t, tt.want, q.searchLimit)
		})
	}
}

func TestSearch_EmptyResults(t *testing.T) {
	q := newFakeQuerier()
	q.results = []domain.SearchResult{}
	api, _ := newTestAPI(q, 10)

	rec := get(t, api, "/api/search?q=zzzz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[],"query":"zzzz"}`, rec.Body.String())
}

func TestSearch_StoreError(t *testing.T) {
	q := newFakeQuerier()
	q.err = errors.New("disk I/O error")
	api, _ := newTestAPI(q, 10)

	rec := get(t, api, "/api/search?q=austin")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestMetroDetail(t *testing.T) {
	api, _ := newTestAPI(newFakeQuerier(), 0)

	rec := get(t, api, "/api/metros/austin-tx")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "12420", body["cbsa"])
	display, ok := body["display"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "110.0", display["rpp_all"])
	assert.Equal(t, "N/A", display["rpp_goods"])
	assert.Equal(t, "+10.0% vs national avg", display["diff"])
	assert.Equal(t, "N/A", display["population"])
}

func TestNotFound(t *testing.T) {
	api, _ := newTestAPI(newFakeQuerier(), 0)

	for _, target := range []string{
		"/api/metros/gotham",
		"/api/metros/gotham/history",
		"/api/states/atlantis",
		"/api/states/atlantis/metros",
		"/api/rankings/fastest",
		"/api/unknown",
	} {
		rec := get(t, api, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		body := decode[map[string]string](t, rec)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestStateRoutes(t *testing.T) {
	api, _ := newTestAPI(newFakeQuerier(), 0)

	rec := get(t, api, "/api/states/texas")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "TX", body["abbr"])
	assert.InDelta(t, 1, body["msa_count"], 0)

	rec = get(t, api, "/api/states/texas/metros")
	require.Equal(t, http.StatusOK, rec.Code)
	metros := decode[[]domain.Metro](t, rec)
	require.Len(t, metros, 1)
	assert.Equal(t, "austin-tx", metros[0].Slug)

	rec = get(t, api, "/api/states/texas/history")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]domain.StateHistory](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "TX", history[0].Abbr)
}

func TestMetroHistoryRoute(t *testing.T) {
	api, _ := newTestAPI(newFakeQuerier(), 0)

	rec := get(t, api, "/api/metros/dayton-oh/history")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]domain.MetroHistory](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "19430", history[0].CBSA)
}

func TestRankings_Limit(t *testing.T) {
	tests := []struct {
		target string
		want   int
	}{
		{"/api/rankings/expensive", 25},
		{"/api/rankings/cheapest?limit=10", 10},
		{"/api/rankings/rents?limit=1000", 100},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			q := newFakeQuerier()
			api, _ := newTestAPI(q, 0)
			rec := get(t, api, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, q.rankLimit)
		})
	}
}

func TestStats(t *testing.T) {
	api, m := newTestAPI(newFakeQuerier(), 0)

	rec := get(t, api, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[domain.NationalStats](t, rec)
	assert.Equal(t, 3, body.MSACount)
	assert.Nil(t, body.MinRPPAll)
	assert.Equal(t, 1, testutil.CollectAndCount(m.QueryDuration))
}

func TestQueryDurationUsesClock(t *testing.T) {
	q := newFakeQuerier()
	api, m, clock := newTimedTestAPI(q, 0)
	q.onStats = func() { clock.Advance(200 * time.Millisecond) }

	rec := get(t, api, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	expected := `
# HELP rpp_etl_query_duration_seconds Read API handler duration by route.
# TYPE rpp_etl_query_duration_seconds histogram
rpp_etl_query_duration_seconds_bucket{route="GET /api/stats",le="0.001"} 0
rpp_etl_query_duration_seconds_bucket{route="GET /api/stats",le="0.005"} 0
rpp_etl_query_duration_seconds_bucket{route="GET /api/stats",le="0.01"} 0
rpp_etl_query_duration_seconds_bucket{route="GET /api/stats",le="0.025"} 0
rpp_etl_query_duration_seconds_bucket{route="GET /api/stats",le="0.05"} 0
rpp_etl_query_duration_seconds_bucket{route="GET /api/stats",le="0.1"} 0
rpp_etl_query_duration_seconds_bucket{route="GET /api/stats",le="0.25"} 1
rpp_etl_query_duration_seconds_bucket{route="GET /api/stats",le="1"} 1
rpp_etl_query_duration_seconds_bucket{route="GET /api/stats",le="+Inf"} 1
rpp_etl_query_duration_seconds_sum{route="GET /api/stats"} 0.2
rpp_etl_query_duration_seconds_count{route="GET /api/stats"} 1
`
	require.NoError(t, testutil.CollectAndCompare(m.QueryDuration, strings.NewReader(expected), "rpp_etl_query_duration_seconds"))
}

func TestSalary(t *testing.T) {
	api, _ := newTestAPI(newFakeQuerier(), 0)

	rec := get(t, api, "/api/salary?salary=100000&from=austin-tx&to=dayton-oh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"salary": 100000,
		"from": {"slug": "austin-tx", "name": "Austin, TX", "rpp_all": 110},
		"to": {"slug": "dayton-oh", "name": "Dayton, OH", "rpp_all": 95},
		"equivalent": 86364,
		"formatted": "$86,364"
	}`, rec.Body.String())
}

func TestSalary_Errors(t *testing.T) {
	api, _ := newTestAPI(newFakeQuerier(), 0)

	assert.Equal(t, http.StatusBadRequest, get(t, api, "/api/salary?salary=abc&from=austin-tx&to=dayton-oh").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, api, "/api/salary?salary=-5&from=austin-tx&to=dayton-oh").Code)
	assert.Equal(t, http.StatusNotFound, get(t, api, "/api/salary?salary=1&from=austin-tx&to=gotham").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, get(t, api, "/api/salary?salary=1&from=empty&to=austin-tx").Code)
}

func TestServerMountsAPI(t *testing.T) {
	api, _ := newTestAPI(newFakeQuerier(), 0)
	srv := httpadapter.NewServer(":0", &mockReadiness{}, api, slog.Default())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metros", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	metros := decode[[]domain.Metro](t, rec)
	assert.Len(t, metros, 2)
}
