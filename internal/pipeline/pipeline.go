// Package pipeline wires the stages into the end-to-end catalog run:
// collect listings, enrich into Catalog A, fetch Catalog B, reconcile,
// ingest price series and derive returns. Every stage persists its
// artifact so partial runs can be resumed from the store.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"uitf-catalog/internal/collect"
	"uitf-catalog/internal/config"
	"uitf-catalog/internal/enrich"
	"uitf-catalog/internal/fetch"
	"uitf-catalog/internal/logging"
	"uitf-catalog/internal/models"
	"uitf-catalog/internal/reconcile"
	"uitf-catalog/internal/series"
	"uitf-catalog/internal/sources"
	"uitf-catalog/internal/store"
)

// Stage names recorded in the store's run bookkeeping.
const (
	StageCollect   = "collect"
	StageEnrich    = "enrich"
	StageBulk      = "bulk"
	StageReconcile = "reconcile"
	StageSeries    = "series"
	StageReturns   = "returns"
)

// Pipeline owns the stage components and the persistence layer.
type Pipeline struct {
	cfg       *config.Config
	store     store.DataStore
	exporter  *store.CSVExporter
	collector *collect.Collector
	enricher  *enrich.Enricher
	bulk      *sources.BulkClient
	ingester  *series.Ingester
	engine    *reconcile.Engine
	logger    zerolog.Logger
}

// NewCache builds the fetch cache backend selected by configuration.
func NewCache(cfg config.CacheConfig) (fetch.Cache, error) {
	switch cfg.Backend {
	case "disk":
		return fetch.NewDiskCache(cfg.Dir)
	case "memory":
		return fetch.NewMemoryCache(), nil
	case "redis":
		return fetch.NewRedisCache(cfg.RedisAddr, "uitfcat"), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// New assembles a pipeline from configuration, a data store and a logger.
func New(cfg *config.Config, ds store.DataStore, logger zerolog.Logger) (*Pipeline, error) {
	cache, err := NewCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	client := fetch.NewClient(cache, cfg.Pipeline.FetchTimeout, logger)

	exporter, err := store.NewCSVExporter(cfg.Pipeline.DataDir)
	if err != nil {
		return nil, err
	}

	listing := sources.NewListingClient(client, cfg.Sources.ListingURL)
	detail := sources.NewDetailClient(client, cfg.Sources.DetailURL)
	seriesSrc := sources.NewSeriesClient(client, cfg.Sources.SeriesURL)

	return &Pipeline{
		cfg:       cfg,
		store:     ds,
		exporter:  exporter,
		collector: collect.New(listing, cfg.Pipeline.PageSize, logger),
		enricher:  enrich.New(detail, cfg.Mappings.BankWebsites, cfg.Pipeline.FetchWorkers, logger),
		bulk:      sources.NewBulkClient(client, cfg.Sources.FundInfoURL),
		ingester:  series.New(seriesSrc, cfg.Pipeline.LookbackYears, cfg.Pipeline.FetchWorkers, logger),
		engine:    reconcile.New(cfg.Mappings.Overrides, logger),
		logger:    logging.WithStage(logger, "pipeline"),
	}, nil
}

// Collect runs the listing queries and returns the deduplicated record set.
func (p *Pipeline) Collect(ctx context.Context) ([]models.RawListingRecord, error) {
	records, err := p.collector.Collect(ctx, p.cfg.Pipeline.Queries)
	if err != nil {
		return nil, err
	}
	records = models.DedupeListings(records)
	p.logger.Info().Int("records", len(records)).Msg("Listing collection complete")
	p.markDone(StageCollect)
	return records, nil
}

// BuildCatalogA enriches the listing records into Catalog A and persists
// it. Records are filtered to trust funds, tolerantly: a record whose fund
// kind could not be determined is kept. Records whose detail fetch failed
// are skipped, not fatal.
func (p *Pipeline) BuildCatalogA(ctx context.Context, records []models.RawListingRecord) ([]models.Fund, error) {
	results := p.enricher.EnrichAll(ctx, records)

	var funds []models.Fund
	seen := map[string]struct{}{}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if r.Detail.FundKind.Valid && r.Detail.FundKind.Value != enrich.TrustFundKind {
			continue
		}
		if _, dup := seen[r.Record.Symbol]; dup {
			continue
		}
		seen[r.Record.Symbol] = struct{}{}
		funds = append(funds, p.enricher.BuildFund(r.Record, r.Detail))
	}

	if err := p.store.SaveFunds(ctx, funds); err != nil {
		return nil, fmt.Errorf("persisting catalog A: %w", err)
	}
	p.logger.Info().Int("funds", len(funds)).Msg("Catalog A built")
	p.markDone(StageEnrich)
	return funds, nil
}

// BuildCatalogB fetches the bulk fund-information table, canonicalizes the
// bank vocabulary and persists the deduplicated rows. Malformed rows are
// skipped and logged.
func (p *Pipeline) BuildCatalogB(ctx context.Context) ([]models.FundInfo, error) {
	rows, skipped, err := p.bulk.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, serr := range skipped {
		logging.LogSkip(p.logger, "fund_info", "", serr)
	}

	for i := range rows {
		if canonical, ok := p.cfg.Mappings.BankNames[rows[i].Bank]; ok {
			rows[i].Bank = canonical
		}
	}
	rows = models.DedupeFundInfo(rows)

	if err := p.store.SaveFundInfo(ctx, rows); err != nil {
		return nil, fmt.Errorf("persisting catalog B: %w", err)
	}
	p.logger.Info().Int("rows", len(rows)).Int("skipped", len(skipped)).Msg("Catalog B built")
	p.markDone(StageBulk)
	return rows, nil
}

// Reconcile merges the catalogs, persists the matrix and exports it. The
// assigned symbols are stamped back onto the stored Catalog B rows so
// later inspection can tell matched from unmatched rows.
func (p *Pipeline) Reconcile(ctx context.Context, funds []models.Fund, infos []models.FundInfo) (reconcile.Result, error) {
	result := p.engine.Reconcile(funds, infos)

	stamped := make([]models.FundInfo, len(infos))
	copy(stamped, infos)
	for i := range stamped {
		if a, ok := result.Assigned[stamped[i].InfoKey()]; ok {
			stamped[i].Symbol = a.Symbol
		}
	}
	if err := p.store.SaveFundInfo(ctx, stamped); err != nil {
		return result, fmt.Errorf("persisting assignments: %w", err)
	}

	if err := p.store.SaveMatrix(ctx, result.Matrix); err != nil {
		return result, fmt.Errorf("persisting matrix: %w", err)
	}
	if _, err := p.exporter.ExportMatrix(result.Matrix); err != nil {
		return result, err
	}
	p.markDone(StageReconcile)
	return result, nil
}

// IngestSeries fetches price history for the matrix symbols, persists and
// exports the canonical price table.
func (p *Pipeline) IngestSeries(ctx context.Context, matrix []models.ReconciledFund) ([]models.PricePoint, error) {
	symbols := make([]string, 0, len(matrix))
	for _, row := range matrix {
		symbols = append(symbols, row.Symbol)
	}

	points := p.ingester.FetchAll(ctx, symbols)
	if err := p.store.SavePricePoints(ctx, points); err != nil {
		return nil, fmt.Errorf("persisting price points: %w", err)
	}

	all, err := p.store.GetAllPricePoints(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := p.exporter.ExportPrices(all); err != nil {
		return nil, err
	}
	p.logger.Info().Int("symbols", len(symbols)).Int("points", len(points)).Msg("Series ingested")
	p.markDone(StageSeries)
	return all, nil
}

// DeriveReturns computes the period returns from the stored price table,
// persists and exports them.
func (p *Pipeline) DeriveReturns(ctx context.Context) ([]models.ReturnRow, error) {
	points, err := p.store.GetAllPricePoints(ctx)
	if err != nil {
		return nil, err
	}

	rows := series.PeriodReturns(points)
	if err := p.store.SaveReturns(ctx, rows); err != nil {
		return nil, fmt.Errorf("persisting returns: %w", err)
	}
	if _, err := p.exporter.ExportReturns(rows); err != nil {
		return nil, err
	}
	p.logger.Info().Int("rows", len(rows)).Msg("Returns derived")
	p.markDone(StageReturns)
	return rows, nil
}

// Run executes the full pipeline end to end.
func (p *Pipeline) Run(ctx context.Context) (reconcile.Result, error) {
	records, err := p.Collect(ctx)
	if err != nil {
		return reconcile.Result{}, err
	}
	funds, err := p.BuildCatalogA(ctx, records)
	if err != nil {
		return reconcile.Result{}, err
	}
	infos, err := p.BuildCatalogB(ctx)
	if err != nil {
		return reconcile.Result{}, err
	}
	result, err := p.Reconcile(ctx, funds, infos)
	if err != nil {
		return result, err
	}
	if _, err := p.IngestSeries(ctx, result.Matrix); err != nil {
		return result, err
	}
	if _, err := p.DeriveReturns(ctx); err != nil {
		return result, err
	}
	return result, nil
}

func (p *Pipeline) markDone(stage string) {
	if err := p.store.SetLastRun(stage, time.Now().UTC()); err != nil {
		p.logger.Warn().Str("stage", stage).Err(err).Msg("Failed to record stage completion")
	}
}
