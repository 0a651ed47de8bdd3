package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/go-querystring/query"

	apperrors "uitf-catalog/internal/errors"
	"uitf-catalog/internal/fetch"
)

// SeriesClient fetches per-symbol price-history documents. The document
// carries a data_values field: a flat array of interleaved
// [epoch_millis, value] numbers.
type SeriesClient struct {
	client  *fetch.Client
	baseURL string
}

// NewSeriesClient creates a time-series source adapter.
func NewSeriesClient(client *fetch.Client, baseURL string) *SeriesClient {
	return &SeriesClient{client: client, baseURL: baseURL}
}

type seriesParams struct {
	LookbackYears int `url:"years"`
}

type seriesDoc struct {
	DataValues []float64 `json:"data_values"`
}

// FetchRaw fetches a symbol's bounded-window history document and returns
// the interleaved [epoch_millis, value] numbers. A missing or empty
// data_values field yields an empty slice, not an error: some symbols have
// no tracked history.
func (s *SeriesClient) FetchRaw(ctx context.Context, symbol string, lookbackYears int) ([]float64, error) {
	params, _ := query.Values(seriesParams{LookbackYears: lookbackYears})
	addr := s.baseURL + "/" + url.PathEscape(symbol) + "?" + params.Encode()

	data, err := s.client.CachedGet(ctx, "series", addr)
	if err != nil {
		return nil, err
	}

	var doc seriesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewParseError("series", symbol, "invalid json document", err)
	}
	if len(doc.DataValues)%2 != 0 {
		return nil, apperrors.NewParseError("series", symbol,
			fmt.Sprintf("odd data_values length %d", len(doc.DataValues)), nil)
	}
	return doc.DataValues, nil
}
