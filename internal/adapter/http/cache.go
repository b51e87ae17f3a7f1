package http

import (
	"strconv"
	"time"

	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// searchCacheTTL matches the max-age advertised to clients.
const searchCacheTTL = 5 * time.Minute

// searchCache memoizes search results by trimmed query and limit. Entries
// expire so a reseeded store is picked up without a restart.
type searchCache struct {
	lru *expirable.LRU[string, []domain.SearchResult]
}

// newSearchCache returns nil when size is not positive, which disables caching.
func newSearchCache(size int) *searchCache {
	if size <= 0 {
		return nil
	}
	return &searchCache{lru: expirable.NewLRU[string, []domain.SearchResult](size, nil, searchCacheTTL)}
}

func searchKey(query string, limit int) string {
	return strconv.Itoa(limit) + "|" + query
}

func (c *searchCache) get(query string, limit int) ([]domain.SearchResult, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(searchKey(query, limit))
}

func (c *searchCache) put(query string, limit int, results []domain.SearchResult) {
	if c == nil {
		return
	}
	c.lru.Add(searchKey(query, limit), results)
}

func (c *searchCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
