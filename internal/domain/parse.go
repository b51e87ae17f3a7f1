package domain

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Sentinel DataValue strings used by BEA for missing data.
const (
	SentinelNotAvailable = "(NA)"
	SentinelNotDisclosed = "(D)"
)

// decimalRe accepts plain decimal numerals: optional sign, digits, optional fraction.
var decimalRe = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)$`)

// ErrMalformedRecord marks a raw record that cannot be keyed by area and year.
var ErrMalformedRecord = errors.New("malformed record")

// ValueKind classifies how a DataValue string was interpreted.
type ValueKind int

const (
	ValuePresent ValueKind = iota
	ValueSentinel
	ValueInvalid
)

// ParseValue converts a BEA DataValue into an index value. It reports false for
// the sentinels "(NA)" and "(D)", the empty string, and anything that is not a
// decimal numeral.
func ParseValue(s string) (float64, bool) {
	v, kind := classifyValue(s)
	return v, kind == ValuePresent
}

func classifyValue(s string) (float64, ValueKind) {
	s = strings.TrimSpace(s)
	if s == "" || s == SentinelNotAvailable || s == SentinelNotDisclosed {
		return 0, ValueSentinel
	}
	if !decimalRe.MatchString(s) {
		return 0, ValueInvalid
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ValueInvalid
	}
	return v, ValuePresent
}

// ParseStats counts soft failures seen while parsing an artifact.
type ParseStats struct {
	Records       int `json:"records"`
	Malformed     int `json:"malformed"`
	InvalidValues int `json:"invalid_values"`
	Sentinels     int `json:"sentinels"`
}

// Add accumulates other into s.
func (s *ParseStats) Add(other ParseStats) {
	s.Records += other.Records
	s.Malformed += other.Malformed
	s.InvalidValues += other.InvalidValues
	s.Sentinels += other.Sentinels
}

// ParseObservation validates a raw record for the given category label.
// It returns ErrMalformedRecord when the record has no geography code, an
// unparseable period, or an unknown category. Value problems never fail the
// record; the returned kind says whether the value was present, a sentinel,
// or invalid.
func ParseObservation(category string, raw RawRecord) (Observation, ValueKind, error) {
	cat := Category(category)
	if !cat.Valid() {
		return Observation{}, 0, fmt.Errorf("%w: unknown category %q", ErrMalformedRecord, category)
	}
	geo := strings.TrimSpace(raw.GeoFips)
	if geo == "" {
		return Observation{}, 0, fmt.Errorf("%w: missing GeoFips", ErrMalformedRecord)
	}
	year, err := strconv.Atoi(strings.TrimSpace(raw.TimePeriod))
	if err != nil {
		return Observation{}, 0, fmt.Errorf("%w: period %q for %s", ErrMalformedRecord, raw.TimePeriod, geo)
	}

	obs := Observation{
		Category: cat,
		GeoCode:  geo,
		GeoName:  raw.GeoName,
		Year:     year,
	}
	v, kind := classifyValue(raw.DataValue)
	if kind == ValuePresent {
		obs.Value = &v
	}
	return obs, kind, nil
}

// ParseArtifact validates every record of an artifact, calling fn for each
// usable observation in file order. Categories are visited in line code order
// so that repeated runs see records in the same sequence.
func ParseArtifact(a Artifact, fn func(Observation)) ParseStats {
	var stats ParseStats
	for _, label := range artifactLabels(a) {
		for _, raw := range a[label] {
			stats.Records++
			obs, kind, err := ParseObservation(label, raw)
			if err != nil {
				stats.Malformed++
				continue
			}
			switch kind {
			case ValueSentinel:
				stats.Sentinels++
			case ValueInvalid:
				stats.InvalidValues++
			}
			fn(obs)
		}
	}
	return stats
}

// artifactLabels returns known categories first in line code order, followed
// by any unknown labels sorted by name.
func artifactLabels(a Artifact) []string {
	labels := make([]string, 0, len(a))
	for _, c := range Categories {
		if _, ok := a[string(c)]; ok {
			labels = append(labels, string(c))
		}
	}
	var unknown []string
	for label := range a {
		if !Category(label).Valid() {
			unknown = append(unknown, label)
		}
	}
	slices.Sort(unknown)
	return append(labels, unknown...)
}
