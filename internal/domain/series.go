package domain

import (
	"slices"
)

// Bucket holds the four category values observed for one area in one year.
type Bucket struct {
	All      *float64
	Goods    *float64
	Services *float64
	Rents    *float64
}

// Set stores v in the slot for c.
func (b *Bucket) Set(c Category, v *float64) {
	switch c {
	case CategoryAll:
		b.All = v
	case CategoryGoods:
		b.Goods = v
	case CategoryServices:
		b.Services = v
	case CategoryRents:
		b.Rents = v
	}
}

// Complete reports whether the composite value is present.
func (b Bucket) Complete() bool { return b.All != nil }

// Series is the per-year history of one area.
type Series struct {
	Key     string
	GeoName string
	years   map[int]*Bucket
}

// Bucket returns the bucket for year, creating it if needed.
func (s *Series) Bucket(year int) *Bucket {
	if s.years == nil {
		s.years = make(map[int]*Bucket)
	}
	b, ok := s.years[year]
	if !ok {
		b = &Bucket{}
		s.years[year] = b
	}
	return b
}

// Years returns the observed years in ascending order.
func (s *Series) Years() []int {
	years := make([]int, 0, len(s.years))
	for y := range s.years {
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

// Latest returns the most recent year whose composite value is present.
func (s *Series) Latest() (int, Bucket, bool) {
	years := s.Years()
	for i := len(years) - 1; i >= 0; i-- {
		b := s.years[years[i]]
		if b.Complete() {
			return years[i], *b, true
		}
	}
	return 0, Bucket{}, false
}

// Complete returns every year with a composite value, ascending.
func (s *Series) Complete() []YearBucket {
	var out []YearBucket
	for _, y := range s.Years() {
		if b := s.years[y]; b.Complete() {
			out = append(out, YearBucket{Year: y, Bucket: *b})
		}
	}
	return out
}

// YearBucket pairs a bucket with its year.
type YearBucket struct {
	Year int
	Bucket
}

// SeriesSet groups observations by area key, remembering first-seen order.
type SeriesSet struct {
	order []string
	byKey map[string]*Series
}

// NewSeriesSet returns an empty SeriesSet.
func NewSeriesSet() *SeriesSet {
	return &SeriesSet{byKey: make(map[string]*Series)}
}

// Add records obs under key. The first observation for a key fixes its GeoName.
func (ss *SeriesSet) Add(key string, obs Observation) {
	s, ok := ss.byKey[key]
	if !ok {
		s = &Series{Key: key, GeoName: obs.GeoName}
		ss.byKey[key] = s
		ss.order = append(ss.order, key)
	}
	s.Bucket(obs.Year).Set(obs.Category, obs.Value)
}

// Len returns the number of distinct areas.
func (ss *SeriesSet) Len() int { return len(ss.order) }

// Each visits series in first-seen order.
func (ss *SeriesSet) Each(fn func(*Series)) {
	for _, k := range ss.order {
		fn(ss.byKey[k])
	}
}

// Get returns the series for key.
func (ss *SeriesSet) Get(key string) (*Series, bool) {
	s, ok := ss.byKey[key]
	return s, ok
}
