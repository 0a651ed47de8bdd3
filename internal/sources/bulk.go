package sources

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	apperrors "uitf-catalog/internal/errors"
	"uitf-catalog/internal/fetch"
	"uitf-catalog/internal/models"
)

// bulkColumns is the fixed column count of the fund-information table.
const bulkColumns = 17

// BulkClient fetches the single large fund-information table (Catalog B's
// raw form).
type BulkClient struct {
	client  *fetch.Client
	baseURL string
}

// NewBulkClient creates a bulk source adapter.
func NewBulkClient(client *fetch.Client, baseURL string) *BulkClient {
	return &BulkClient{client: client, baseURL: baseURL}
}

// FetchAll fetches and parses the bulk table. A row with an unexpected
// shape is fatal for that row only: it is reported in the returned skip
// list and the remaining rows are still parsed.
func (b *BulkClient) FetchAll(ctx context.Context) ([]models.FundInfo, []error, error) {
	data, err := b.client.CachedGet(ctx, "fund_info", b.baseURL)
	if err != nil {
		return nil, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, apperrors.NewParseError("fund_info", b.baseURL, "unreadable document", err)
	}

	table := doc.Find("table#fund-table tbody")
	if table.Length() == 0 {
		return nil, nil, apperrors.NewParseError("fund_info", b.baseURL, "fund table not found", nil)
	}

	var rows []models.FundInfo
	var skipped []error
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() != bulkColumns {
			skipped = append(skipped, apperrors.NewParseError("fund_info", fmt.Sprintf("row %d", i),
				fmt.Sprintf("expected %d columns, got %d", bulkColumns, cells.Length()), nil))
			return
		}
		info, err := parseBulkRow(cells)
		if err != nil {
			skipped = append(skipped, apperrors.NewParseError("fund_info", fmt.Sprintf("row %d", i), "unparseable row", err))
			return
		}
		rows = append(rows, info)
	})
	return rows, skipped, nil
}

func parseBulkRow(cells *goquery.Selection) (models.FundInfo, error) {
	text := func(i int) string {
		return strings.TrimSpace(cells.Eq(i).Text())
	}

	info := models.FundInfo{
		Bank:               text(0),
		FundName:           text(1),
		FundClassification: text(2),
		RiskClassification: text(3),
		Currency:           text(4),
		InceptionDate:      text(5),
		LastUploadedDate:   text(6),
	}
	if info.Bank == "" || info.FundName == "" {
		return models.FundInfo{}, fmt.Errorf("missing bank or fund name")
	}

	var err error
	if info.NAVPU, err = parseFloat(text(7)); err != nil {
		return models.FundInfo{}, err
	}
	if info.YTDReturnPct, err = parseFloat(text(8)); err != nil {
		return models.FundInfo{}, err
	}
	if info.OneYearReturnPct, err = parseFloat(text(9)); err != nil {
		return models.FundInfo{}, err
	}
	if info.ThreeYearReturnPct, err = parseFloat(text(10)); err != nil {
		return models.FundInfo{}, err
	}
	if info.FiveYearReturnPct, err = parseFloat(text(11)); err != nil {
		return models.FundInfo{}, err
	}
	if info.TrustFeePct, err = parseFloat(text(12)); err != nil {
		return models.FundInfo{}, err
	}
	if info.MinInitial, err = parseFloat(text(13)); err != nil {
		return models.FundInfo{}, err
	}
	if info.MinAdditional, err = parseFloat(text(14)); err != nil {
		return models.FundInfo{}, err
	}
	if info.MinHoldingDays, err = parseInt(text(15)); err != nil {
		return models.FundInfo{}, err
	}
	if info.SettlementDays, err = parseInt(text(16)); err != nil {
		return models.FundInfo{}, err
	}
	return info, nil
}

// parseFloat tolerates thousands separators, percent signs and blank cells.
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" || strings.EqualFold(s, "n/a") {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" || strings.EqualFold(s, "n/a") {
		return 0, nil
	}
	return strconv.Atoi(s)
}
