// Package enrich turns raw listing records into Catalog A entities by
// fetching and mining each symbol's detail document.
package enrich

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"uitf-catalog/internal/logging"
	"uitf-catalog/internal/models"
	"uitf-catalog/internal/normalize"
	"uitf-catalog/internal/performance"
)

// DetailSource fetches a symbol's detail document in flattened key/value
// form. keys is the stable (sorted) iteration order of flat.
type DetailSource interface {
	FetchDetail(ctx context.Context, symbol string) (flat map[string]string, keys []string, err error)
}

// TrustFundKind is the fund-kind value backfilled by the profile heuristic.
const TrustFundKind = "Unit Investment Trust Fund"

// Field extraction patterns: each target field takes the value of the
// FIRST flattened key path matching its pattern. No match means the field
// stays missing, never an error.
var fieldPatterns = map[string]*regexp.Regexp{
	"profile":   regexp.MustCompile(`(?i)(profile|description)`),
	"website":   regexp.MustCompile(`(?i)(website|web_?address)`),
	"fundKind":  regexp.MustCompile(`(?i)(fund_?type|fund_?kind)`),
	"inception": regexp.MustCompile(`(?i)inception`),
	"currency":  regexp.MustCompile(`(?i)currency`),
}

// Enricher fetches detail documents and extracts EntityDetail fields.
type Enricher struct {
	source       DetailSource
	bankWebsites map[string]string
	workers      int
	logger       zerolog.Logger
}

// New creates an enricher. bankWebsites is the exact-match website-domain
// to bank lookup table; workers bounds the fan-out across symbols.
func New(source DetailSource, bankWebsites map[string]string, workers int, logger zerolog.Logger) *Enricher {
	return &Enricher{
		source:       source,
		bankWebsites: bankWebsites,
		workers:      workers,
		logger:       logging.WithStage(logger, "enrich"),
	}
}

// Enrich fetches and extracts the detail fields for one symbol.
func (e *Enricher) Enrich(ctx context.Context, symbol string) (models.EntityDetail, error) {
	flat, keys, err := e.source.FetchDetail(ctx, symbol)
	if err != nil {
		return models.EntityDetail{}, err
	}
	return Extract(symbol, flat, keys), nil
}

// Extract builds an EntityDetail from a flattened detail document. Pure
// function, exported for tests.
func Extract(symbol string, flat map[string]string, keys []string) models.EntityDetail {
	detail := models.EntityDetail{
		Symbol:        symbol,
		Profile:       firstMatch(flat, keys, fieldPatterns["profile"]),
		Website:       firstMatch(flat, keys, fieldPatterns["website"]),
		FundKind:      firstMatch(flat, keys, fieldPatterns["fundKind"]),
		InceptionDate: firstMatch(flat, keys, fieldPatterns["inception"]),
		Currency:      firstMatch(flat, keys, fieldPatterns["currency"]),
	}

	// Best-effort backfill: a profile mentioning "trust" classifies the
	// fund as a trust fund. Downstream filtering still tolerates a
	// missing kind.
	if !detail.FundKind.Valid && detail.Profile.Valid {
		if strings.Contains(strings.ToLower(detail.Profile.Value), "trust") {
			detail.FundKind = models.SomeString(TrustFundKind)
		}
	}
	return detail
}

func firstMatch(flat map[string]string, keys []string, pattern *regexp.Regexp) models.OptString {
	for _, k := range keys {
		if pattern.MatchString(k) {
			return models.SomeString(flat[k])
		}
	}
	return models.NoString()
}

// BuildFund combines a raw listing record with its detail into a Catalog A
// entity. The name is normalized here so both catalogs compare on the same
// canonical form; an unmapped website leaves the bank unresolved but the
// record is retained.
func (e *Enricher) BuildFund(rec models.RawListingRecord, detail models.EntityDetail) models.Fund {
	bank := ""
	if detail.Website.Valid {
		bank = e.bankWebsites[websiteDomain(detail.Website.Value)]
	}
	return models.Fund{
		Symbol:        rec.Symbol,
		Name:          normalize.Name(rec.Name),
		Bank:          bank,
		InceptionDate: detail.InceptionDate.Or(""),
		Currency:      detail.Currency.Or(""),
	}
}

// websiteDomain reduces a website field to its bare domain for the
// exact-match bank lookup.
func websiteDomain(website string) string {
	s := strings.TrimSpace(strings.ToLower(website))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

// Result pairs a listing record with its enrichment outcome.
type Result struct {
	Record models.RawListingRecord
	Detail models.EntityDetail
	Err    error
}

// EnrichAll fans the enrichment out across symbols on a bounded worker
// pool. Symbols are independent, so order of fetching does not matter;
// results are re-sorted into input order for determinism.
func (e *Enricher) EnrichAll(ctx context.Context, records []models.RawListingRecord) []Result {
	order := make(map[string]int, len(records))
	for i, r := range records {
		order[r.Key()] = i
	}

	var mu sync.Mutex
	results := make([]Result, 0, len(records))

	performance.ForEach(e.workers, records, func(rec models.RawListingRecord) {
		logger := logging.WithSymbol(e.logger, rec.Symbol)
		detail, err := e.Enrich(ctx, rec.Symbol)
		if err != nil {
			logging.LogSkip(logger, "detail", rec.Symbol, err)
		} else {
			logger.Debug().Msg("Detail enriched")
		}
		mu.Lock()
		results = append(results, Result{Record: rec, Detail: detail, Err: err})
		mu.Unlock()
	})

	sort.SliceStable(results, func(i, j int) bool {
		return order[results[i].Record.Key()] < order[results[j].Record.Key()]
	})
	return results
}
