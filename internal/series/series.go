// Package series ingests per-symbol price history into the canonical
// (Symbol, Date, Value) table.
package series

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"uitf-catalog/internal/logging"
	"uitf-catalog/internal/models"
	"uitf-catalog/internal/performance"
)

// Source fetches the raw interleaved [epoch_millis, value] numbers for a
// symbol's bounded-window history.
type Source interface {
	FetchRaw(ctx context.Context, symbol string, lookbackYears int) ([]float64, error)
}

// Ingester fetches and parses price series for the reconciled symbol list.
type Ingester struct {
	source        Source
	lookbackYears int
	workers       int
	logger        zerolog.Logger
}

// New creates an ingester.
func New(source Source, lookbackYears, workers int, logger zerolog.Logger) *Ingester {
	return &Ingester{
		source:        source,
		lookbackYears: lookbackYears,
		workers:       workers,
		logger:        logging.WithStage(logger, "series"),
	}
}

// FetchSeries fetches one symbol's history. An empty or missing series
// yields an empty result, not an error: some symbols have no tracked
// history and are simply absent from the price table.
func (i *Ingester) FetchSeries(ctx context.Context, symbol string) ([]models.PricePoint, error) {
	raw, err := i.source.FetchRaw(ctx, symbol, i.lookbackYears)
	if err != nil {
		return nil, err
	}
	return Pair(symbol, raw), nil
}

// Pair converts interleaved [epoch_millis, value] numbers into price
// points tagged with the symbol. Pure function, exported for tests.
func Pair(symbol string, raw []float64) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		points = append(points, models.PricePoint{
			Symbol: symbol,
			Date:   models.EpochMillisToDate(int64(raw[i])),
			Value:  raw[i+1],
		})
	}
	return points
}

// FetchAll fans the series fetch out across symbols and merges the results
// into one table, deduplicated on (Symbol, Date) and sorted by
// (Symbol, Date) ascending. A symbol whose fetch fails is skipped and
// logged; its rows are simply absent.
func (i *Ingester) FetchAll(ctx context.Context, symbols []string) []models.PricePoint {
	var mu sync.Mutex
	var merged []models.PricePoint

	performance.ForEach(i.workers, symbols, func(symbol string) {
		logger := logging.WithSymbol(i.logger, symbol)
		points, err := i.FetchSeries(ctx, symbol)
		if err != nil {
			logging.LogSkip(logger, "series", symbol, err)
			return
		}
		logger.Debug().Int("points", len(points)).Msg("Series fetched")
		mu.Lock()
		merged = append(merged, points...)
		mu.Unlock()
	})

	return Canonicalize(merged)
}

// Canonicalize deduplicates on (Symbol, Date), first occurrence winning,
// and sorts by (Symbol, Date) ascending.
func Canonicalize(points []models.PricePoint) []models.PricePoint {
	seen := make(map[string]struct{}, len(points))
	out := make([]models.PricePoint, 0, len(points))
	for _, p := range points {
		k := p.Symbol + "\x1f" + p.Date
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Symbol != out[b].Symbol {
			return out[a].Symbol < out[b].Symbol
		}
		return out[a].Date < out[b].Date
	})
	return out
}
