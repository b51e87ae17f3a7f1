package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Category is one of the four price parity facets tracked per area per year.
type Category string

const (
	CategoryAll      Category = "all"
	CategoryGoods    Category = "goods"
	CategoryServices Category = "services"
	CategoryRents    Category = "rents"
)

// Categories lists the categories in BEA line code order.
var Categories = []Category{CategoryAll, CategoryGoods, CategoryRents, CategoryServices}

// LineCode returns the BEA line code for the category, or 0 if unknown.
func (c Category) LineCode() int {
	switch c {
	case CategoryAll:
		return 1
	case CategoryGoods:
		return 2
	case CategoryRents:
		return 3
	case CategoryServices:
		return 4
	default:
		return 0
	}
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool { return c.LineCode() != 0 }

// Class identifies the geography level of a raw artifact.
type Class string

const (
	ClassMetro Class = "metro"
	ClassState Class = "state"
)

// Classes lists the entity classes in load order.
var Classes = []Class{ClassMetro, ClassState}

// Table returns the BEA table name for the class.
func (c Class) Table() string {
	if c == ClassState {
		return "SARPP"
	}
	return "MARPP"
}

// GeoFips returns the BEA GeoFips selector for the class.
func (c Class) GeoFips() string {
	if c == ClassState {
		return "STATE"
	}
	return "MSA"
}

// ArtifactName returns the file name of the raw artifact for the class.
func (c Class) ArtifactName() string {
	if c == ClassState {
		return "state_rpp.json"
	}
	return "msa_rpp.json"
}

// RawRecord is a single observation exactly as returned by the BEA API.
type RawRecord struct {
	Code       string `json:"Code,omitempty"`
	GeoFips    string `json:"GeoFips"`
	GeoName    string `json:"GeoName"`
	TimePeriod string `json:"TimePeriod"`
	CLUnit     string `json:"CL_UNIT,omitempty"`
	UnitMult   string `json:"UNIT_MULT,omitempty"`
	DataValue  string `json:"DataValue"`
	NoteRef    string `json:"NoteRef,omitempty"`
}

// UnmarshalJSON decodes a record field by field. BEA occasionally emits
// numbers or null where strings are expected, so scalar fields keep the raw
// literal text and null becomes empty. A record that is not an object decodes
// to the zero RawRecord, which ParseObservation rejects as malformed.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		*r = RawRecord{}
		return nil
	}
	*r = RawRecord{
		Code:       scalarText(fields["Code"]),
		GeoFips:    scalarText(fields["GeoFips"]),
		GeoName:    scalarText(fields["GeoName"]),
		TimePeriod: scalarText(fields["TimePeriod"]),
		CLUnit:     scalarText(fields["CL_UNIT"]),
		UnitMult:   scalarText(fields["UNIT_MULT"]),
		DataValue:  scalarText(fields["DataValue"]),
		NoteRef:    scalarText(fields["NoteRef"]),
	}
	return nil
}

func scalarText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

// Artifact is the persisted fetch result for one class: category label to records.
type Artifact map[string][]RawRecord

// Observation is a validated raw record.
type Observation struct {
	Category Category
	GeoCode  string
	GeoName  string
	Year     int
	Value    *float64
}

// Metro is the latest snapshot row for a metropolitan or micropolitan area.
type Metro struct {
	CBSA         string   `json:"cbsa"`
	Name         string   `json:"name"`
	Slug         string   `json:"slug"`
	StateAbbr    string   `json:"state_abbr"`
	RPPAll       *float64 `json:"rpp_all"`
	RPPGoods     *float64 `json:"rpp_goods"`
	RPPServices  *float64 `json:"rpp_services"`
	RPPRents     *float64 `json:"rpp_rents"`
	Year         int      `json:"year"`
	Population   *int64   `json:"population"`
	MedianIncome *int64   `json:"median_income"`
}

// MetroHistory is one year of index values for a metro.
type MetroHistory struct {
	CBSA        string   `json:"cbsa"`
	Year        int      `json:"year"`
	RPPAll      *float64 `json:"rpp_all"`
	RPPGoods    *float64 `json:"rpp_goods"`
	RPPServices *float64 `json:"rpp_services"`
	RPPRents    *float64 `json:"rpp_rents"`
}

// State is the latest snapshot row for a state.
type State struct {
	Abbr         string   `json:"abbr"`
	Name         string   `json:"name"`
	Slug         string   `json:"slug"`
	RPPAll       *float64 `json:"rpp_all"`
	RPPGoods     *float64 `json:"rpp_goods"`
	RPPServices  *float64 `json:"rpp_services"`
	RPPRents     *float64 `json:"rpp_rents"`
	Year         int      `json:"year"`
	Population   *int64   `json:"population"`
	MedianIncome *int64   `json:"median_income"`
	MSACount     int      `json:"msa_count"`
}

// StateHistory is one year of index values for a state.
type StateHistory struct {
	Abbr        string   `json:"abbr"`
	Year        int      `json:"year"`
	RPPAll      *float64 `json:"rpp_all"`
	RPPGoods    *float64 `json:"rpp_goods"`
	RPPServices *float64 `json:"rpp_services"`
	RPPRents    *float64 `json:"rpp_rents"`
}

// SearchResult is the trimmed metro projection returned by the search endpoint.
type SearchResult struct {
	CBSA        string   `json:"cbsa"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	StateAbbr   string   `json:"state_abbr"`
	RPPAll      *float64 `json:"rpp_all"`
	RPPGoods    *float64 `json:"rpp_goods"`
	RPPServices *float64 `json:"rpp_services"`
	RPPRents    *float64 `json:"rpp_rents"`
}

// NationalStats summarizes the deployed store in a single read.
type NationalStats struct {
	MSACount    int      `json:"msa_count"`
	StateCount  int      `json:"state_count"`
	MaxRPPAll   *float64 `json:"max_rpp_all"`
	MinRPPAll   *float64 `json:"min_rpp_all"`
	AvgRPPAll   *float64 `json:"avg_rpp_all"`
	MaxRPPRents *float64 `json:"max_rpp_rents"`
	MinRPPRents *float64 `json:"min_rpp_rents"`
	AvgRPPRents *float64 `json:"avg_rpp_rents"`
}

// BundleFile describes one file of an exported bundle.
type BundleFile struct {
	Name   string `json:"name"`
	Table  string `json:"table,omitempty"`
	Rows   int    `json:"rows"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// BundleManifest describes an exported bundle for downstream replicas.
type BundleManifest struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	ChunkSize   int            `json:"chunk_size"`
	Files       []BundleFile   `json:"files"`
	TableRows   map[string]int `json:"table_rows"`
}
