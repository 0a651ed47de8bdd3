package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"uitf-catalog/internal/models"
)

// Stable CSV artifact names under the data directory.
const (
	MatrixFile  = "uitf_matrix.csv"
	PricesFile  = "prices.csv"
	ReturnsFile = "returns.csv"
)

// CSVExporter writes the pipeline's tabular artifacts to a directory.
// Column names come from the csv tags on the model types and are part of
// the output contract.
type CSVExporter struct {
	dir string
}

// NewCSVExporter creates an exporter rooted at dir, creating it if needed.
func NewCSVExporter(dir string) (*CSVExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &CSVExporter{dir: dir}, nil
}

// ExportMatrix writes the reconciled catalog.
func (e *CSVExporter) ExportMatrix(rows []models.ReconciledFund) (string, error) {
	return e.write(MatrixFile, &rows)
}

// ExportPrices writes the canonical price table.
func (e *CSVExporter) ExportPrices(points []models.PricePoint) (string, error) {
	return e.write(PricesFile, &points)
}

// ExportReturns writes the derived period returns.
func (e *CSVExporter) ExportReturns(rows []models.ReturnRow) (string, error) {
	return e.write(ReturnsFile, &rows)
}

func (e *CSVExporter) write(name string, rows interface{}) (string, error) {
	path := filepath.Join(e.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(rows, f); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}
