package domain

import (
	"regexp"
	"strings"
)

var (
	// classificationRe matches the CBSA type suffix BEA appends to metro names.
	classificationRe = regexp.MustCompile(`\s*\((?:Metropolitan|Micropolitan) Statistical Area\)`)

	// stateAbbrRe captures the first state token after the comma, e.g.
	// "Kansas City, MO-KS" -> "MO".
	stateAbbrRe = regexp.MustCompile(`,\s*([A-Z]{2})(?:\s|$|-|/)`)

	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// CleanMetroName strips the statistical area classification and trims the result.
func CleanMetroName(geoName string) string {
	return strings.TrimSpace(classificationRe.ReplaceAllString(geoName, ""))
}

// ExtractStateAbbr returns the owning state of a raw metro name, or "" when no
// state token follows a comma.
func ExtractStateAbbr(geoName string) string {
	m := stateAbbrRe.FindStringSubmatch(geoName)
	if m == nil {
		return ""
	}
	return m[1]
}

// Slugify lowercases text, collapses every run of non-alphanumerics to a single
// hyphen, and trims hyphens from both ends.
func Slugify(text string) string {
	s := nonAlnumRe.ReplaceAllString(strings.ToLower(text), "-")
	return strings.Trim(s, "-")
}

// StateSlug derives a state slug from its full name. State names are unique, so
// no collision handling is needed.
func StateSlug(name string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// SlugSet assigns unique slugs in call order.
type SlugSet struct {
	used map[string]struct{}
}

// NewSlugSet returns an empty SlugSet.
func NewSlugSet() *SlugSet {
	return &SlugSet{used: make(map[string]struct{})}
}

// Assign returns the slug for name, appending the geographic code when the
// plain slug was already handed out.
func (s *SlugSet) Assign(name, code string) string {
	slug := Slugify(name)
	if s.taken(slug) {
		slug = Slugify(name + "-" + code)
		// A name that already ends in another area's code can still collide.
		for s.taken(slug) {
			slug = Slugify(slug + "-" + code)
		}
	}
	s.used[slug] = struct{}{}
	return slug
}

func (s *SlugSet) taken(slug string) bool {
	_, ok := s.used[slug]
	return ok
}
