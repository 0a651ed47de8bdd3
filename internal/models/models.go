// Package models defines the record types that flow through the catalog pipeline.
package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used everywhere in the pipeline.
const DateLayout = "2006-01-02"

// OptString is an optional string field. Absent fields are represented by
// Valid=false, never by an empty string that could collide with a real value.
type OptString struct {
	Value string
	Valid bool
}

// SomeString returns a present OptString.
func SomeString(v string) OptString {
	return OptString{Value: v, Valid: true}
}

// NoString returns an absent OptString.
func NoString() OptString {
	return OptString{}
}

// Or returns the value if present, otherwise the fallback.
func (o OptString) Or(fallback string) string {
	if o.Valid {
		return o.Value
	}
	return fallback
}

func (o OptString) String() string {
	if !o.Valid {
		return "<missing>"
	}
	return o.Value
}

// RawListingRecord is one row of a listing search page. The same symbol may
// appear under multiple search queries; rows are deduplicated by exact
// field-tuple equality before further processing.
type RawListingRecord struct {
	Symbol  string
	Name    string
	Country string
	Type    string
}

// Key returns the exact-tuple identity of the record.
func (r RawListingRecord) Key() string {
	return strings.Join([]string{r.Symbol, r.Name, r.Country, r.Type}, "\x1f")
}

// DedupeListings removes exact-tuple duplicates, preserving first-seen order.
func DedupeListings(records []RawListingRecord) []RawListingRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]RawListingRecord, 0, len(records))
	for _, r := range records {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// EntityDetail holds the fields extracted from a per-symbol detail document.
// Every field other than the symbol is best-effort.
type EntityDetail struct {
	Symbol        string
	Profile       OptString
	Website       OptString
	FundKind      OptString
	InceptionDate OptString // DateLayout
	Currency      OptString
}

// Fund is a Catalog A entity: broad, symbol-bearing, sparse on attributes.
// Symbol is the unique key. Bank may be empty when the website did not map
// to a known bank; the record is still retained.
type Fund struct {
	Symbol        string
	Name          string
	Bank          string
	InceptionDate string
	Currency      string
}

// FundInfo is a Catalog B entity: attribute-rich but lacking a tradable
// symbol. (Bank, FundName) is unique after deduplication. Symbol is empty
// until the reconciliation engine assigns one.
type FundInfo struct {
	Bank               string
	FundName           string
	Currency           string
	FundClassification string
	RiskClassification string
	InceptionDate      string
	LastUploadedDate   string
	NAVPU              float64
	YTDReturnPct       float64
	OneYearReturnPct   float64
	ThreeYearReturnPct float64
	FiveYearReturnPct  float64
	TrustFeePct        float64
	MinInitial         float64
	MinAdditional      float64
	MinHoldingDays     int
	SettlementDays     int

	Symbol string
}

// InfoKey identifies a FundInfo row by its natural key.
func (f FundInfo) InfoKey() string {
	return f.Bank + "\x1f" + f.FundName
}

// DedupeFundInfo enforces the (bank, fund name) uniqueness invariant.
// First occurrence wins on duplicate keys.
func DedupeFundInfo(rows []FundInfo) []FundInfo {
	seen := make(map[string]struct{}, len(rows))
	out := make([]FundInfo, 0, len(rows))
	for _, r := range rows {
		k := r.InfoKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// ReconciledFund is one row of the reconciled catalog, the pipeline's primary
// artifact. Every row has a non-empty symbol and the Catalog B descriptive
// attributes. CSV tags are the stable output contract.
type ReconciledFund struct {
	Symbol             string  `csv:"Symbol"`
	Name               string  `csv:"Name"`
	Bank               string  `csv:"Bank"`
	InceptionDate      string  `csv:"Inception Date"`
	Currency           string  `csv:"Currency"`
	FundClassification string  `csv:"Fund Classification"`
	RiskClassification string  `csv:"Risk Classification"`
	LastUploadedDate   string  `csv:"Last Uploaded Date"`
	NAVPU              float64 `csv:"NAVPU"`
	YTDReturnPct       float64 `csv:"YTD Return %"`
	OneYearReturnPct   float64 `csv:"1Y Return %"`
	ThreeYearReturnPct float64 `csv:"3Y Return %"`
	FiveYearReturnPct  float64 `csv:"5Y Return %"`
	TrustFeePct        float64 `csv:"Trust Fee %"`
	MinInitial         float64 `csv:"Min Initial"`
	MinAdditional      float64 `csv:"Min Additional"`
	MinHoldingDays     int     `csv:"Min Holding Days"`
	SettlementDays     int     `csv:"Settlement Days"`
}

// PricePoint is one observation of a fund's historical series. Rows are
// ordered by (Symbol, Date) ascending and unique per (Symbol, Date).
type PricePoint struct {
	Symbol string  `csv:"Symbol"`
	Date   string  `csv:"Date"`
	Value  float64 `csv:"Value"`
}

// ReturnRow is a derived period return for one fund.
type ReturnRow struct {
	Symbol    string  `csv:"Symbol"`
	Period    string  `csv:"Period"`
	ReturnPct float64 `csv:"Return %"`
}

// EpochMillisToDate converts an epoch-millisecond timestamp to a calendar
// date in UTC.
func EpochMillisToDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(DateLayout)
}

// ParseDate validates a DateLayout date string.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.Format(DateLayout), nil
}
