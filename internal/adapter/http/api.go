package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
	"github.com/couchcryptid/rpp-data-etl-service/internal/store"
	"github.com/jonboulle/clockwork"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const searchCacheControl = "public, max-age=300, s-maxage=3600"

// Querier is the read surface of the deployed store.
type Querier interface {
	MetroBySlug(ctx context.Context, slug string) (domain.Metro, bool, error)
	ListMetros(ctx context.Context) ([]domain.Metro, error)
	MetrosByState(ctx context.Context, abbr string) ([]domain.Metro, error)
	MetroHistory(ctx context.Context, cbsa string) ([]domain.MetroHistory, error)
	StateBySlug(ctx context.Context, slug string) (domain.State, bool, error)
	ListStates(ctx context.Context) ([]domain.State, error)
	StateHistory(ctx context.Context, abbr string) ([]domain.StateHistory, error)
	MostExpensive(ctx context.Context, limit int) ([]domain.Metro, error)
	LeastExpensive(ctx context.Context, limit int) ([]domain.Metro, error)
	HighestRent(ctx context.Context, limit int) ([]domain.Metro, error)
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
	NationalStats(ctx context.Context) (domain.NationalStats, error)
}

// API serves the JSON read endpoints.
type API struct {
	q       Querier
	cache   *searchCache
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewAPI builds the read API. A non-positive cacheSize disables the search cache.
func NewAPI(q Querier, cacheSize int, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *API {
	a := &API{
		q:       q,
		cache:   newSearchCache(cacheSize),
		clock:   clock,
		metrics: metrics,
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	a.handle("GET /api/search", a.handleSearch)
	a.handle("GET /api/metros", a.handleMetros)
	a.handle("GET /api/metros/{slug}", a.handleMetro)
	a.handle("GET /api/metros/{slug}/history", a.handleMetroHistory)
	a.handle("GET /api/states", a.handleStates)
	a.handle("GET /api/states/{slug}", a.handleState)
	a.handle("GET /api/states/{slug}/metros", a.handleStateMetros)
	a.handle("GET /api/states/{slug}/history", a.handleStateHistory)
	a.handle("GET /api/rankings/{kind}", a.handleRankings)
	a.handle("GET /api/stats", a.handleStats)
	a.handle("GET /api/salary", a.handleSalary)
	a.mux.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return a
}

// ServeHTTP dispatches to the API routes.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// handle registers h and records its latency under the route pattern.
func (a *API) handle(pattern string, h http.HandlerFunc) {
	a.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := a.clock.Now()
		h(w, r)
		a.metrics.QueryDuration.WithLabelValues(pattern).Observe(a.clock.Since(start).Seconds())
	})
}

type searchResponse struct {
	Results []domain.SearchResult `json:"results"`
	Query   string                `json:"query"`
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", searchCacheControl)

	q, ok := store.NormalizeQuery(r.URL.Query().Get("q"))
	if !ok {
		a.metrics.SearchRequests.WithLabelValues("short").Inc()
		writeJSON(w, http.StatusOK, searchResponse{Results: []domain.SearchResult{}, Query: ""})
		return
	}
	limit := store.SearchLimit(queryInt(r, "limit"))

	if results, hit := a.cache.get(q, limit); hit {
		a.metrics.SearchRequests.WithLabelValues("hit").Inc()
		writeJSON(w, http.StatusOK, searchResponse{Results: results, Query: q})
		return
	}
	a.metrics.SearchRequests.WithLabelValues("miss").Inc()

	results, err := a.q.Search(r.Context(), q, limit)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	a.cache.put(q, limit, results)
	writeJSON(w, http.StatusOK, searchResponse{Results: results, Query: q})
}

func (a *API) handleMetros(w http.ResponseWriter, r *http.Request) {
	metros, err := a.q.ListMetros(r.Context())
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metros)
}

func (a *API) handleMetro(w http.ResponseWriter, r *http.Request) {
	m, found, err := a.q.MetroBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "metro not found")
		return
	}
	writeJSON(w, http.StatusOK, metroView(m))
}

func (a *API) handleMetroHistory(w http.ResponseWriter, r *http.Request) {
	m, found, err := a.q.MetroBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "metro not found")
		return
	}
	history, err := a.q.MetroHistory(r.Context(), m.CBSA)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) handleStates(w http.ResponseWriter, r *http.Request) {
	states, err := a.q.ListStates(r.Context())
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

// lookupState writes a 404 and returns false when the slug is unknown.
func (a *API) lookupState(w http.ResponseWriter, r *http.Request) (domain.State, bool) {
	st, found, err := a.q.StateBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		a.serverError(w, r, err)
		return domain.State{}, false
	}
	if !found {
		writeError(w, http.StatusNotFound, "state not found")
		return domain.State{}, false
	}
	return st, true
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	st, ok := a.lookupState(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateView(st))
}

func (a *API) handleStateMetros(w http.ResponseWriter, r *http.Request) {
	st, ok := a.lookupState(w, r)
	if !ok {
		return
	}
	metros, err := a.q.MetrosByState(r.Context(), st.Abbr)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metros)
}

func (a *API) handleStateHistory(w http.ResponseWriter, r *http.Request) {
	st, ok := a.lookupState(w, r)
	if !ok {
		return
	}
	history, err := a.q.StateHistory(r.Context(), st.Abbr)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) handleRankings(w http.ResponseWriter, r *http.Request) {
	var rank func(context.Context, int) ([]domain.Metro, error)
	switch r.PathValue("kind") {
	case "expensive":
		rank = a.q.MostExpensive
	case "cheapest":
		rank = a.q.LeastExpensive
	case "rents":
		rank = a.q.HighestRent
	default:
		writeError(w, http.StatusNotFound, "unknown ranking")
		return
	}

	limit := queryInt(r, "limit")
	if limit <= 0 {
		limit = store.DefaultRankingLimit
	}
	limit = min(limit, store.MaxRankingLimit)

	metros, err := rank(r.Context(), limit)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metros)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.q.NationalStats(r.Context())
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type salaryArea struct {
	Slug   string   `json:"slug"`
	Name   string   `json:"name"`
	RPPAll *float64 `json:"rpp_all"`
}

type salaryResponse struct {
	Salary     float64    `json:"salary"`
	From       salaryArea `json:"from"`
	To         salaryArea `json:"to"`
	Equivalent int64      `json:"equivalent"`
	Formatted  string     `json:"formatted"`
}

func (a *API) handleSalary(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	salary, err := strconv.ParseFloat(params.Get("salary"), 64)
	if err != nil || salary < 0 {
		writeError(w, http.StatusBadRequest, "salary must be a non-negative number")
		return
	}

	from, ok := a.salaryArea(w, r, params.Get("from"))
	if !ok {
		return
	}
	to, ok := a.salaryArea(w, r, params.Get("to"))
	if !ok {
		return
	}
	if from.RPPAll == nil || to.RPPAll == nil {
		writeError(w, http.StatusUnprocessableEntity, "metro has no composite index")
		return
	}

	equivalent := domain.SalaryEquivalent(salary, *from.RPPAll, *to.RPPAll)
	amount := float64(equivalent)
	writeJSON(w, http.StatusOK, salaryResponse{
		Salary:     salary,
		From:       from,
		To:         to,
		Equivalent: equivalent,
		Formatted:  domain.FormatMoney(&amount),
	})
}

func (a *API) salaryArea(w http.ResponseWriter, r *http.Request, slug string) (salaryArea, bool) {
	m, found, err := a.q.MetroBySlug(r.Context(), slug)
	if err != nil {
		a.serverError(w, r, err)
		return salaryArea{}, false
	}
	if !found {
		writeError(w, http.StatusNotFound, "metro not found: "+slug)
		return salaryArea{}, false
	}
	return salaryArea{Slug: m.Slug, Name: m.Name, RPPAll: m.RPPAll}, true
}

func (a *API) serverError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error("query failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// queryInt parses an integer query parameter; missing or malformed yields 0.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	sharedobs.WriteJSON(w, status, v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
