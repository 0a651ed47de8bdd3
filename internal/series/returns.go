package series

import (
	"time"

	"uitf-catalog/internal/models"
)

// Return periods derived from the ingested series, as calendar lookbacks
// from each symbol's latest observation.
var returnPeriods = []struct {
	Name   string
	Months int
}{
	{"1M", 1},
	{"3M", 3},
	{"6M", 6},
	{"1Y", 12},
	{"3Y", 36},
	{"5Y", 60},
}

// PeriodReturns derives simple percent returns per symbol from a canonical
// price table. For each period it compares the latest value against the
// closest observation at or before the lookback date; periods without a
// baseline observation are omitted.
func PeriodReturns(points []models.PricePoint) []models.ReturnRow {
	bySymbol := map[string][]models.PricePoint{}
	var symbols []string
	for _, p := range points {
		if _, ok := bySymbol[p.Symbol]; !ok {
			symbols = append(symbols, p.Symbol)
		}
		bySymbol[p.Symbol] = append(bySymbol[p.Symbol], p)
	}

	var rows []models.ReturnRow
	for _, symbol := range symbols {
		series := bySymbol[symbol] // already (Symbol, Date) ascending
		latest := series[len(series)-1]
		latestDate, err := time.Parse(models.DateLayout, latest.Date)
		if err != nil {
			continue
		}

		for _, period := range returnPeriods {
			cutoff := latestDate.AddDate(0, -period.Months, 0).Format(models.DateLayout)
			base, ok := observationAtOrBefore(series, cutoff)
			if !ok || base.Value == 0 {
				continue
			}
			rows = append(rows, models.ReturnRow{
				Symbol:    symbol,
				Period:    period.Name,
				ReturnPct: (latest.Value - base.Value) / base.Value * 100,
			})
		}
	}
	return rows
}

// observationAtOrBefore returns the last observation dated at or before
// cutoff.
func observationAtOrBefore(series []models.PricePoint, cutoff string) (models.PricePoint, bool) {
	var found models.PricePoint
	ok := false
	for _, p := range series {
		if p.Date > cutoff {
			break
		}
		found = p
		ok = true
	}
	return found, ok
}
