package database

// Schema is the DDL shared by the build store and exported bundles. Every
// statement is idempotent so a bundle can be applied to a populated store.
const Schema = `CREATE TABLE IF NOT EXISTS msas (
  cbsa TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT UNIQUE,
  state_abbr TEXT,
  rpp_all REAL,
  rpp_goods REAL,
  rpp_services REAL,
  rpp_rents REAL,
  year INTEGER,
  population INTEGER,
  median_income INTEGER
);

CREATE TABLE IF NOT EXISTS msa_history (
  cbsa TEXT NOT NULL,
  year INTEGER NOT NULL,
  rpp_all REAL,
  rpp_goods REAL,
  rpp_services REAL,
  rpp_rents REAL,
  PRIMARY KEY (cbsa, year)
);

CREATE TABLE IF NOT EXISTS states (
  abbr TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT UNIQUE,
  rpp_all REAL,
  rpp_goods REAL,
  rpp_services REAL,
  rpp_rents REAL,
  year INTEGER,
  population INTEGER,
  median_income INTEGER,
  msa_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS state_history (
  abbr TEXT NOT NULL,
  year INTEGER NOT NULL,
  rpp_all REAL,
  rpp_goods REAL,
  rpp_services REAL,
  rpp_rents REAL,
  PRIMARY KEY (abbr, year)
);

CREATE INDEX IF NOT EXISTS idx_msas_state ON msas(state_abbr);
CREATE INDEX IF NOT EXISTS idx_msas_slug ON msas(slug);
CREATE INDEX IF NOT EXISTS idx_msas_rpp ON msas(rpp_all DESC);
CREATE INDEX IF NOT EXISTS idx_msa_history_cbsa ON msa_history(cbsa);
CREATE INDEX IF NOT EXISTS idx_state_history_abbr ON state_history(abbr);

-- Populated outside the pipeline.
CREATE TABLE IF NOT EXISTS _stats (key TEXT PRIMARY KEY, value TEXT NOT NULL);
`

// Table describes a data table for export: its column order and a stable row order.
type Table struct {
	Name    string
	Columns []string
	OrderBy string
}

// Tables lists the data tables in bundle order.
var Tables = []Table{
	{
		Name:    "states",
		Columns: []string{"abbr", "name", "slug", "rpp_all", "rpp_goods", "rpp_services", "rpp_rents", "year", "population", "median_income", "msa_count"},
		OrderBy: "abbr",
	},
	{
		Name:    "msas",
		Columns: []string{"cbsa", "name", "slug", "state_abbr", "rpp_all", "rpp_goods", "rpp_services", "rpp_rents", "year", "population", "median_income"},
		OrderBy: "cbsa",
	},
	{
		Name:    "msa_history",
		Columns: []string{"cbsa", "year", "rpp_all", "rpp_goods", "rpp_services", "rpp_rents"},
		OrderBy: "cbsa, year",
	},
	{
		Name:    "state_history",
		Columns: []string{"abbr", "year", "rpp_all", "rpp_goods", "rpp_services", "rpp_rents"},
		OrderBy: "abbr, year",
	},
}
