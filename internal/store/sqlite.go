// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"uitf-catalog/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	mu       sync.RWMutex
	runTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:       db,
		runTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Catalog A: symbol-bearing fund listing
	CREATE TABLE IF NOT EXISTS funds (
		symbol TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		bank TEXT,
		inception_date TEXT,
		currency TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Catalog B: attribute-rich bulk fund information
	CREATE TABLE IF NOT EXISTS fund_info (
		bank TEXT NOT NULL,
		fund_name TEXT NOT NULL,
		currency TEXT,
		fund_classification TEXT,
		risk_classification TEXT,
		inception_date TEXT,
		last_uploaded_date TEXT,
		navpu REAL,
		ytd_return_pct REAL,
		one_year_return_pct REAL,
		three_year_return_pct REAL,
		five_year_return_pct REAL,
		trust_fee_pct REAL,
		min_initial REAL,
		min_additional REAL,
		min_holding_days INTEGER,
		settlement_days INTEGER,
		symbol TEXT,
		PRIMARY KEY (bank, fund_name)
	);

	-- Reconciled catalog, the pipeline's primary artifact
	CREATE TABLE IF NOT EXISTS uitf_matrix (
		symbol TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		bank TEXT,
		inception_date TEXT,
		currency TEXT,
		fund_classification TEXT,
		risk_classification TEXT,
		last_uploaded_date TEXT,
		navpu REAL,
		ytd_return_pct REAL,
		one_year_return_pct REAL,
		three_year_return_pct REAL,
		five_year_return_pct REAL,
		trust_fee_pct REAL,
		min_initial REAL,
		min_additional REAL,
		min_holding_days INTEGER,
		settlement_days INTEGER
	);

	-- Price history
	CREATE TABLE IF NOT EXISTS prices (
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (symbol, date)
	);
	CREATE INDEX IF NOT EXISTS idx_prices_symbol ON prices(symbol);

	-- Derived period returns
	CREATE TABLE IF NOT EXISTS returns (
		symbol TEXT NOT NULL,
		period TEXT NOT NULL,
		return_pct REAL NOT NULL,
		PRIMARY KEY (symbol, period)
	);

	-- Stage completion bookkeeping
	CREATE TABLE IF NOT EXISTS runs (
		stage TEXT PRIMARY KEY,
		completed_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveFunds replaces the Catalog A snapshot.
func (s *SQLiteStore) SaveFunds(ctx context.Context, funds []models.Fund) error {
	return s.replaceAll(ctx, "funds", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO funds (symbol, name, bank, inception_date, currency) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, f := range funds {
			if _, err := stmt.ExecContext(ctx, f.Symbol, f.Name, f.Bank, f.InceptionDate, f.Currency); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetFunds returns the Catalog A snapshot ordered by symbol.
func (s *SQLiteStore) GetFunds(ctx context.Context) ([]models.Fund, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, name, bank, inception_date, currency FROM funds ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var funds []models.Fund
	for rows.Next() {
		var f models.Fund
		if err := rows.Scan(&f.Symbol, &f.Name, &f.Bank, &f.InceptionDate, &f.Currency); err != nil {
			return nil, err
		}
		funds = append(funds, f)
	}
	return funds, rows.Err()
}

// SaveFundInfo replaces the Catalog B snapshot.
func (s *SQLiteStore) SaveFundInfo(ctx context.Context, infos []models.FundInfo) error {
	return s.replaceAll(ctx, "fund_info", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO fund_info (
			bank, fund_name, currency, fund_classification, risk_classification,
			inception_date, last_uploaded_date, navpu, ytd_return_pct,
			one_year_return_pct, three_year_return_pct, five_year_return_pct,
			trust_fee_pct, min_initial, min_additional, min_holding_days,
			settlement_days, symbol
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range infos {
			if _, err := stmt.ExecContext(ctx,
				r.Bank, r.FundName, r.Currency, r.FundClassification, r.RiskClassification,
				r.InceptionDate, r.LastUploadedDate, r.NAVPU, r.YTDReturnPct,
				r.OneYearReturnPct, r.ThreeYearReturnPct, r.FiveYearReturnPct,
				r.TrustFeePct, r.MinInitial, r.MinAdditional, r.MinHoldingDays,
				r.SettlementDays, r.Symbol); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetFundInfo returns the Catalog B snapshot in insertion (rowid) order.
func (s *SQLiteStore) GetFundInfo(ctx context.Context) ([]models.FundInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		bank, fund_name, currency, fund_classification, risk_classification,
		inception_date, last_uploaded_date, navpu, ytd_return_pct,
		one_year_return_pct, three_year_return_pct, five_year_return_pct,
		trust_fee_pct, min_initial, min_additional, min_holding_days,
		settlement_days, symbol
	FROM fund_info ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []models.FundInfo
	for rows.Next() {
		var r models.FundInfo
		if err := rows.Scan(
			&r.Bank, &r.FundName, &r.Currency, &r.FundClassification, &r.RiskClassification,
			&r.InceptionDate, &r.LastUploadedDate, &r.NAVPU, &r.YTDReturnPct,
			&r.OneYearReturnPct, &r.ThreeYearReturnPct, &r.FiveYearReturnPct,
			&r.TrustFeePct, &r.MinInitial, &r.MinAdditional, &r.MinHoldingDays,
			&r.SettlementDays, &r.Symbol); err != nil {
			return nil, err
		}
		infos = append(infos, r)
	}
	return infos, rows.Err()
}

// SaveMatrix replaces the reconciled catalog.
func (s *SQLiteStore) SaveMatrix(ctx context.Context, matrix []models.ReconciledFund) error {
	return s.replaceAll(ctx, "uitf_matrix", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO uitf_matrix (
			symbol, name, bank, inception_date, currency, fund_classification,
			risk_classification, last_uploaded_date, navpu, ytd_return_pct,
			one_year_return_pct, three_year_return_pct, five_year_return_pct,
			trust_fee_pct, min_initial, min_additional, min_holding_days,
			settlement_days
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range matrix {
			if _, err := stmt.ExecContext(ctx,
				r.Symbol, r.Name, r.Bank, r.InceptionDate, r.Currency, r.FundClassification,
				r.RiskClassification, r.LastUploadedDate, r.NAVPU, r.YTDReturnPct,
				r.OneYearReturnPct, r.ThreeYearReturnPct, r.FiveYearReturnPct,
				r.TrustFeePct, r.MinInitial, r.MinAdditional, r.MinHoldingDays,
				r.SettlementDays); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMatrix returns the reconciled catalog ordered by symbol.
func (s *SQLiteStore) GetMatrix(ctx context.Context) ([]models.ReconciledFund, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		symbol, name, bank, inception_date, currency, fund_classification,
		risk_classification, last_uploaded_date, navpu, ytd_return_pct,
		one_year_return_pct, three_year_return_pct, five_year_return_pct,
		trust_fee_pct, min_initial, min_additional, min_holding_days,
		settlement_days
	FROM uitf_matrix ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matrix []models.ReconciledFund
	for rows.Next() {
		var r models.ReconciledFund
		if err := rows.Scan(
			&r.Symbol, &r.Name, &r.Bank, &r.InceptionDate, &r.Currency, &r.FundClassification,
			&r.RiskClassification, &r.LastUploadedDate, &r.NAVPU, &r.YTDReturnPct,
			&r.OneYearReturnPct, &r.ThreeYearReturnPct, &r.FiveYearReturnPct,
			&r.TrustFeePct, &r.MinInitial, &r.MinAdditional, &r.MinHoldingDays,
			&r.SettlementDays); err != nil {
			return nil, err
		}
		matrix = append(matrix, r)
	}
	return matrix, rows.Err()
}

// SavePricePoints upserts price rows; (symbol, date) stays unique and
// existing rows are never mutated.
func (s *SQLiteStore) SavePricePoints(ctx context.Context, points []models.PricePoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO prices (symbol, date, value) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, p.Symbol, p.Date, p.Value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetPricePoints returns one symbol's series ordered by date.
func (s *SQLiteStore) GetPricePoints(ctx context.Context, symbol string) ([]models.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, date, value FROM prices WHERE symbol = ? ORDER BY date`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPricePoints(rows)
}

// GetAllPricePoints returns the whole price table ordered by (symbol, date).
func (s *SQLiteStore) GetAllPricePoints(ctx context.Context) ([]models.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, date, value FROM prices ORDER BY symbol, date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPricePoints(rows)
}

func scanPricePoints(rows *sql.Rows) ([]models.PricePoint, error) {
	var points []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Symbol, &p.Date, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// SaveReturns replaces the derived-returns table.
func (s *SQLiteStore) SaveReturns(ctx context.Context, returns []models.ReturnRow) error {
	return s.replaceAll(ctx, "returns", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO returns (symbol, period, return_pct) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range returns {
			if _, err := stmt.ExecContext(ctx, r.Symbol, r.Period, r.ReturnPct); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetReturns returns the derived-returns table ordered by (symbol, period).
func (s *SQLiteStore) GetReturns(ctx context.Context) ([]models.ReturnRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, period, return_pct FROM returns ORDER BY symbol, period`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var returns []models.ReturnRow
	for rows.Next() {
		var r models.ReturnRow
		if err := rows.Scan(&r.Symbol, &r.Period, &r.ReturnPct); err != nil {
			return nil, err
		}
		returns = append(returns, r)
	}
	return returns, rows.Err()
}

// GetLastRun returns the last completion time recorded for a stage.
func (s *SQLiteStore) GetLastRun(stage string) time.Time {
	s.mu.RLock()
	if t, ok := s.runTimes[stage]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var t time.Time
	err := s.db.QueryRow(`SELECT completed_at FROM runs WHERE stage = ?`, stage).Scan(&t)
	if err != nil {
		return time.Time{}
	}
	s.mu.Lock()
	s.runTimes[stage] = t
	s.mu.Unlock()
	return t
}

// SetLastRun records a stage completion time.
func (s *SQLiteStore) SetLastRun(stage string, t time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (stage, completed_at) VALUES (?, ?)
		 ON CONFLICT(stage) DO UPDATE SET completed_at = excluded.completed_at`, stage, t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.runTimes[stage] = t
	s.mu.Unlock()
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// replaceAll clears a table and refills it in one transaction, so readers
// see either the old snapshot or the new one.
func (s *SQLiteStore) replaceAll(ctx context.Context, table string, fill func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return err
	}
	if err := fill(tx); err != nil {
		return err
	}
	return tx.Commit()
}
