// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"uitf-catalog/internal/models"
)

// DataStore defines the interface for pipeline artifact persistence.
type DataStore interface {
	// Catalog A
	SaveFunds(ctx context.Context, funds []models.Fund) error
	GetFunds(ctx context.Context) ([]models.Fund, error)

	// Catalog B
	SaveFundInfo(ctx context.Context, rows []models.FundInfo) error
	GetFundInfo(ctx context.Context) ([]models.FundInfo, error)

	// Reconciled catalog
	SaveMatrix(ctx context.Context, rows []models.ReconciledFund) error
	GetMatrix(ctx context.Context) ([]models.ReconciledFund, error)

	// Price series
	SavePricePoints(ctx context.Context, points []models.PricePoint) error
	GetPricePoints(ctx context.Context, symbol string) ([]models.PricePoint, error)
	GetAllPricePoints(ctx context.Context) ([]models.PricePoint, error)

	// Derived returns
	SaveReturns(ctx context.Context, rows []models.ReturnRow) error
	GetReturns(ctx context.Context) ([]models.ReturnRow, error)

	// Stage bookkeeping
	GetLastRun(stage string) time.Time
	SetLastRun(stage string, t time.Time) error

	// Lifecycle
	Close() error
}
