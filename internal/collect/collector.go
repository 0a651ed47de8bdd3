// Package collect drives the paginated listing search that produces the raw
// Catalog A record set.
package collect

import (
	"context"

	"github.com/rs/zerolog"

	"uitf-catalog/internal/logging"
	"uitf-catalog/internal/models"
)

// ListingSource is the listing search endpoint the collector drives.
type ListingSource interface {
	// ResultCount parses the free-text result-count indicator for a query.
	ResultCount(ctx context.Context, query string) (int, error)
	// FetchPage fetches and parses one listing page (1-based).
	FetchPage(ctx context.Context, query string, page int) ([]models.RawListingRecord, error)
}

// Collector accumulates listing rows across a set of search queries.
type Collector struct {
	source   ListingSource
	pageSize int
	logger   zerolog.Logger
}

// New creates a collector. pageSize is the fixed page size of the listing
// endpoint.
func New(source ListingSource, pageSize int, logger zerolog.Logger) *Collector {
	return &Collector{
		source:   source,
		pageSize: pageSize,
		logger:   logging.WithStage(logger, "collect"),
	}
}

// PageCount returns ceil(resultCount / pageSize).
func PageCount(resultCount, pageSize int) int {
	if resultCount <= 0 {
		return 0
	}
	return (resultCount + pageSize - 1) / pageSize
}

// Collect runs every query and unions the page rows into one record set.
// Queries are processed independently; the same symbol legitimately appears
// under multiple queries and is only deduplicated downstream, by exact
// field-tuple equality.
func (c *Collector) Collect(ctx context.Context, queries []string) ([]models.RawListingRecord, error) {
	var all []models.RawListingRecord
	for _, q := range queries {
		records, err := c.collectQuery(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

func (c *Collector) collectQuery(ctx context.Context, q string) ([]models.RawListingRecord, error) {
	logger := logging.WithQuery(c.logger, q)

	count, err := c.source.ResultCount(ctx, q)
	if err != nil {
		return nil, err
	}

	pages := PageCount(count, c.pageSize)
	logger.Info().Int("results", count).Int("pages", pages).Msg("Listing query sized")
	if pages == 0 {
		// Zero results short-circuits without fetching page 1.
		return nil, nil
	}

	var records []models.RawListingRecord
	for page := 1; page <= pages; page++ {
		rows, err := c.source.FetchPage(ctx, q, page)
		if err != nil {
			return nil, err
		}
		records = append(records, rows...)
	}
	logger.Debug().Int("rows", len(records)).Msg("Listing query collected")
	return records, nil
}
