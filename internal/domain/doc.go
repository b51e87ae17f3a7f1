// Package domain models Bureau of Economic Analysis (BEA) Regional Price Parity data.
//
// # Data Source
//
// Regional Price Parities (RPPs) are published by the BEA Regional dataset and
// fetched through https://apps.bea.gov/api/data/ with method=GetData. Metro
// areas come from table MARPP (GeoFips=MSA), states from table SARPP
// (GeoFips=STATE). Each request covers one LineCode and every available year.
//
// # BEA Data Conventions
//
// Line codes:
//
//	1 = RPP: All items      -> "all"
//	2 = RPP: Goods          -> "goods"
//	3 = RPP: Services: Rents -> "rents"
//	4 = RPP: Services: Other -> "services"
//
// Index values:
//
//	DataValue is a decimal string where 100 is the national average price level.
//	"(NA)" means not available and "(D)" means suppressed to avoid disclosure.
//	Both, and the empty string, are absent values rather than zero.
//
// Geography codes:
//
//	Metro areas use the five-digit CBSA code, e.g. "12420" for Austin.
//	States use a five-digit FIPS code with a trailing "000", e.g. "48000" for Texas.
//	The national row "00000" has no state and is skipped.
//
// Metro names:
//
//	"Austin-Round Rock-Georgetown, TX (Metropolitan Statistical Area)"
//	The parenthetical classification is stripped for display. The first
//	two-letter token after the comma is the owning state, so multi-state
//	metros such as "..., NY-NJ-PA" belong to NY.
//
// # Snapshots
//
// The snapshot row for an area carries the most recent year with an "all items"
// value. Areas without any such year are excluded from both the snapshot and the
// history tables. See [Series.Latest].
package domain
