// Package sources implements the adapters for the four remote interfaces:
// the paginated listing search, the per-symbol detail documents, the bulk
// fund-information table, and the per-symbol price history. Each adapter
// fetches through the cached fetch client and parses into the pipeline's
// record types.
package sources

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-querystring/query"

	apperrors "uitf-catalog/internal/errors"
	"uitf-catalog/internal/fetch"
	"uitf-catalog/internal/models"
)

// ListingClient fetches and parses pages of the listing search endpoint.
type ListingClient struct {
	client  *fetch.Client
	baseURL string
}

// NewListingClient creates a listing source adapter.
func NewListingClient(client *fetch.Client, baseURL string) *ListingClient {
	return &ListingClient{client: client, baseURL: baseURL}
}

type listingParams struct {
	Query string `url:"query"`
	Page  int    `url:"page"`
}

func (l *ListingClient) pageURL(q string, page int) string {
	params, _ := query.Values(listingParams{Query: q, Page: page})
	return l.baseURL + "?" + params.Encode()
}

// resultCountRe tolerates surrounding labels and whitespace around the
// count, e.g. "Showing 1,234 results for ...".
var resultCountRe = regexp.MustCompile(`([\d,]+)\s+results?`)

// ResultCount fetches the first listing page for a query and parses its
// free-text result-count indicator.
func (l *ListingClient) ResultCount(ctx context.Context, q string) (int, error) {
	data, err := l.client.CachedGet(ctx, "listing", l.pageURL(q, 1))
	if err != nil {
		return 0, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return 0, apperrors.NewParseError("listing", q, "unreadable document", err)
	}

	text := doc.Find(".search-result-count").First().Text()
	if text == "" {
		text = doc.Text()
	}
	m := resultCountRe.FindStringSubmatch(text)
	if m == nil {
		return 0, apperrors.NewParseError("listing", q, "result count not found", nil)
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, apperrors.NewParseError("listing", q, "unparseable result count", err)
	}
	return n, nil
}

// FetchPage fetches one listing page and parses its rows. Rows missing a
// symbol are skipped; the page-level schema being absent is a parse error.
func (l *ListingClient) FetchPage(ctx context.Context, q string, page int) ([]models.RawListingRecord, error) {
	data, err := l.client.CachedGet(ctx, "listing", l.pageURL(q, page))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewParseError("listing", q, "unreadable document", err)
	}

	table := doc.Find("table.search-results tbody")
	if table.Length() == 0 {
		return nil, apperrors.NewParseError("listing", q, "results table not found", nil)
	}

	var records []models.RawListingRecord
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}
		rec := models.RawListingRecord{
			Symbol:  strings.TrimSpace(cells.Eq(0).Text()),
			Name:    strings.TrimSpace(cells.Eq(1).Text()),
			Country: strings.TrimSpace(cells.Eq(2).Text()),
			Type:    strings.TrimSpace(cells.Eq(3).Text()),
		}
		if rec.Symbol == "" {
			return
		}
		records = append(records, rec)
	})
	return records, nil
}
