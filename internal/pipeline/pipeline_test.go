package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"uitf-catalog/internal/config"
	"uitf-catalog/internal/store"
)

const listingPage = `<html><body>
<div class="search-result-count">2 results</div>
<table class="search-results"><tbody>
<tr><td>BDOGF:PM</td><td>BDO Growth UITF</td><td>PH</td><td>Open-End Fund</td></tr>
<tr><td>XYZEQ:PM</td><td>Xyz Equity Fund</td><td>PH</td><td>Open-End Fund</td></tr>
</tbody></table>
</body></html>`

const detailBDOGF = `{
	"profile": {"description": "A unit investment trust fund.", "website": "https://www.bdo.com.ph/asset-management"},
	"fundType": "Unit Investment Trust Fund",
	"inceptionDate": "2015-01-01",
	"currency": "PHP"
}`

// An exchange-traded product, not a trust fund: filtered out of Catalog A.
const detailXYZEQ = `{
	"profile": {"description": "An exchange traded fund."},
	"fundType": "ETF",
	"currency": "PHP"
}`

const bulkTable = `<html><body>
<table id="fund-table"><tbody>
<tr>
<td>BDO Unibank</td><td>BDO Growth Fund</td><td>Equity</td><td>Aggressive</td>
<td>PHP</td><td>2015-01-01</td><td>2024-06-28</td>
<td>102.50</td><td>4.2%</td><td>8.1%</td><td>21.3%</td><td>35.9%</td>
<td>1.00%</td><td>10,000</td><td>1,000</td><td>30</td><td>3</td>
</tr>
</tbody></table>
</body></html>`

// Two observations just over a month apart so a 1M return is derivable.
const seriesBDOGF = `{"data_values": [1714608000000, 100.0, 1717372800000, 102.0]}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage))
	})
	mux.HandleFunc("/detail/BDOGF:PM", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailBDOGF))
	})
	mux.HandleFunc("/detail/XYZEQ:PM", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailXYZEQ))
	})
	mux.HandleFunc("/bulk", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bulkTable))
	})
	mux.HandleFunc("/series/BDOGF:PM", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(seriesBDOGF))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Pipeline: config.PipelineConfig{
			DataDir:       t.TempDir(),
			PageSize:      20,
			LookbackYears: 5,
			FetchTimeout:  5 * time.Second,
			FetchWorkers:  2,
			Queries:       []string{"uitf"},
		},
		Sources: config.SourcesConfig{
			ListingURL:  baseURL + "/listing",
			DetailURL:   baseURL + "/detail",
			FundInfoURL: baseURL + "/bulk",
			SeriesURL:   baseURL + "/series",
		},
		Cache: config.CacheConfig{Backend: "memory"},
		Mappings: config.Mappings{
			BankWebsites: map[string]string{"www.bdo.com.ph": "BDO"},
			BankNames:    map[string]string{"BDO Unibank": "BDO"},
			Overrides:    map[string]string{},
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	cfg := newTestConfig(t, srv.URL)

	ds, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer ds.Close()

	p, err := New(cfg, ds, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	result, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Matrix) != 1 {
		t.Fatalf("expected 1 matrix row, got %+v", result.Matrix)
	}
	row := result.Matrix[0]
	if row.Symbol != "BDOGF:PM" {
		t.Errorf("Symbol = %q", row.Symbol)
	}
	if row.Name != "BDO Growth Fund" {
		t.Errorf("Name = %q, want normalized listing name", row.Name)
	}
	if row.Bank != "BDO" {
		t.Errorf("Bank = %q, want canonical vocabulary", row.Bank)
	}
	if row.NAVPU != 102.50 {
		t.Errorf("NAVPU = %f", row.NAVPU)
	}

	// The ETF listing row must not survive into Catalog A.
	funds, err := ds.GetFunds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(funds) != 1 || funds[0].Symbol != "BDOGF:PM" {
		t.Errorf("Catalog A = %+v, want only the trust fund", funds)
	}

	points, err := ds.GetPricePoints(ctx, "BDOGF:PM")
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Errorf("expected 2 price points, got %+v", points)
	}

	returns, err := ds.GetReturns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found1M := false
	for _, r := range returns {
		if r.Symbol == "BDOGF:PM" && r.Period == "1M" {
			found1M = true
			if r.ReturnPct < 1.99 || r.ReturnPct > 2.01 {
				t.Errorf("1M return = %f, want 2%%", r.ReturnPct)
			}
		}
	}
	if !found1M {
		t.Errorf("expected a 1M return, got %+v", returns)
	}

	if ds.GetLastRun(StageReturns).IsZero() {
		t.Error("expected stage completion to be recorded")
	}
}

func TestRunIsIdempotentAcrossReruns(t *testing.T) {
	srv := newTestServer(t)
	cfg := newTestConfig(t, srv.URL)

	ds, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer ds.Close()

	p, err := New(cfg, ds, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	first, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if len(first.Matrix) != len(second.Matrix) {
		t.Fatalf("matrix size changed across reruns: %d vs %d", len(first.Matrix), len(second.Matrix))
	}
	for i := range first.Matrix {
		if first.Matrix[i] != second.Matrix[i] {
			t.Errorf("matrix row %d changed: %+v vs %+v", i, first.Matrix[i], second.Matrix[i])
		}
	}

	points, err := ds.GetAllPricePoints(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Errorf("rerun duplicated price points: %+v", points)
	}
}
