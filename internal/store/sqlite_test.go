package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"uitf-catalog/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFundsSnapshotReplacement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []models.Fund{
		{Symbol: "AAA:PM", Name: "Aaa Growth Fund", Bank: "BDO", InceptionDate: "2015-01-01", Currency: "PHP"},
		{Symbol: "BBB:PM", Name: "Bbb Bond Fund", Bank: "BPI", InceptionDate: "2016-06-15", Currency: "USD"},
	}
	if err := s.SaveFunds(ctx, first); err != nil {
		t.Fatalf("SaveFunds failed: %v", err)
	}

	// A later snapshot fully replaces the earlier one.
	second := []models.Fund{
		{Symbol: "CCC:PM", Name: "Ccc Equity Fund", Bank: "PNB", InceptionDate: "2018-03-01", Currency: "PHP"},
	}
	if err := s.SaveFunds(ctx, second); err != nil {
		t.Fatalf("SaveFunds failed: %v", err)
	}

	got, err := s.GetFunds(ctx)
	if err != nil {
		t.Fatalf("GetFunds failed: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "CCC:PM" {
		t.Errorf("expected only the second snapshot, got %+v", got)
	}
}

func TestFundInfoRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := []models.FundInfo{
		{
			Bank: "BDO", FundName: "Bdo Equity Fund", Currency: "PHP",
			FundClassification: "Equity", RiskClassification: "Aggressive",
			InceptionDate: "2015-01-01", LastUploadedDate: "2024-06-28",
			NAVPU: 102.5, YTDReturnPct: 4.2, OneYearReturnPct: 8.1,
			TrustFeePct: 1.0, MinInitial: 10000, MinAdditional: 1000,
			MinHoldingDays: 30, SettlementDays: 3,
		},
		{Bank: "BPI", FundName: "Bpi Bond Fund", Currency: "PHP"},
	}
	if err := s.SaveFundInfo(ctx, rows); err != nil {
		t.Fatalf("SaveFundInfo failed: %v", err)
	}

	got, err := s.GetFundInfo(ctx)
	if err != nil {
		t.Fatalf("GetFundInfo failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	// Insertion order survives the round trip.
	if got[0] != rows[0] || got[1] != rows[1] {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, rows)
	}
}

func TestPricePointsKeepFirstValue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SavePricePoints(ctx, []models.PricePoint{
		{Symbol: "AAA:PM", Date: "2024-01-02", Value: 100},
	}); err != nil {
		t.Fatalf("SavePricePoints failed: %v", err)
	}
	// A rerun with a different value for the same (symbol, date) does not
	// mutate the stored observation.
	if err := s.SavePricePoints(ctx, []models.PricePoint{
		{Symbol: "AAA:PM", Date: "2024-01-02", Value: 999},
		{Symbol: "AAA:PM", Date: "2024-01-03", Value: 101},
	}); err != nil {
		t.Fatalf("SavePricePoints failed: %v", err)
	}

	got, err := s.GetPricePoints(ctx, "AAA:PM")
	if err != nil {
		t.Fatalf("GetPricePoints failed: %v", err)
	}
	want := []models.PricePoint{
		{Symbol: "AAA:PM", Date: "2024-01-02", Value: 100},
		{Symbol: "AAA:PM", Date: "2024-01-03", Value: 101},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLastRunBookkeeping(t *testing.T) {
	s := newTestStore(t)

	if !s.GetLastRun("collect").IsZero() {
		t.Error("unknown stage should report a zero time")
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.SetLastRun("collect", now); err != nil {
		t.Fatalf("SetLastRun failed: %v", err)
	}
	if got := s.GetLastRun("collect"); !got.Equal(now) {
		t.Errorf("GetLastRun = %v, want %v", got, now)
	}
}

// Property: saving any price batch twice yields the same table as saving it
// once, and rows stay unique per (symbol, date).
func TestProperty_PriceIngestIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("double ingest equals single ingest", prop.ForAll(
		func(days []int, values []float64) bool {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "prop.db"))
			if err != nil {
				return false
			}
			defer s.Close()
			ctx := context.Background()

			var batch []models.PricePoint
			for i, d := range days {
				v := 100.0
				if i < len(values) {
					v = values[i]
				}
				batch = append(batch, models.PricePoint{
					Symbol: "SYM:PM",
					Date:   fmt.Sprintf("2024-01-%02d", d),
					Value:  v,
				})
			}

			if err := s.SavePricePoints(ctx, batch); err != nil {
				return false
			}
			once, err := s.GetAllPricePoints(ctx)
			if err != nil {
				return false
			}
			if err := s.SavePricePoints(ctx, batch); err != nil {
				return false
			}
			twice, err := s.GetAllPricePoints(ctx)
			if err != nil {
				return false
			}

			if len(once) != len(twice) {
				return false
			}
			seen := map[string]struct{}{}
			for i := range once {
				if once[i] != twice[i] {
					return false
				}
				k := once[i].Symbol + "\x1f" + once[i].Date
				if _, dup := seen[k]; dup {
					return false
				}
				seen[k] = struct{}{}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 28)),
		gen.SliceOf(gen.Float64Range(1, 1000)),
	))

	properties.TestingRun(t)
}
