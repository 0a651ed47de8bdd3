package enrich

import (
	"context"
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"uitf-catalog/internal/models"
)

func flatDoc(doc map[string]string) (map[string]string, []string) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return doc, keys
}

func TestExtractFirstMatchingKey(t *testing.T) {
	flat, keys := flatDoc(map[string]string{
		"fundamentals.currency":        "PHP",
		"fundamentals.inceptionDate":   "2015-01-01",
		"issuer.website":               "https://www.bdo.com.ph/trust",
		"profile.description":          "An open-end trust vehicle.",
		"profile.fundType":             "Open-End Fund",
		"quote.currencySymbol":         "₱", // later in sorted order than fundamentals.currency
	})

	detail := Extract("AAA:PM", flat, keys)

	if got := detail.Currency.Or(""); got != "PHP" {
		t.Errorf("currency = %q, want first matching key value PHP", got)
	}
	if got := detail.InceptionDate.Or(""); got != "2015-01-01" {
		t.Errorf("inception = %q", got)
	}
	if got := detail.Website.Or(""); got != "https://www.bdo.com.ph/trust" {
		t.Errorf("website = %q", got)
	}
	if got := detail.FundKind.Or(""); got != "Open-End Fund" {
		t.Errorf("fund kind = %q", got)
	}
}

func TestExtractMissingFieldsStayMissing(t *testing.T) {
	flat, keys := flatDoc(map[string]string{
		"quote.last": "105.2",
	})

	detail := Extract("AAA:PM", flat, keys)

	if detail.Profile.Valid || detail.Website.Valid || detail.FundKind.Valid ||
		detail.InceptionDate.Valid || detail.Currency.Valid {
		t.Errorf("expected all fields missing, got %+v", detail)
	}
}

func TestExtractTrustHeuristic(t *testing.T) {
	flat, keys := flatDoc(map[string]string{
		"profile.description": "A Unit Investment TRUST Fund managed by the bank.",
	})

	detail := Extract("AAA:PM", flat, keys)
	if got := detail.FundKind.Or(""); got != TrustFundKind {
		t.Errorf("fund kind = %q, want trust heuristic backfill", got)
	}

	// Without the token, the kind stays missing.
	flat2, keys2 := flatDoc(map[string]string{
		"profile.description": "A mutual fund.",
	})
	if detail2 := Extract("BBB:PM", flat2, keys2); detail2.FundKind.Valid {
		t.Errorf("fund kind should stay missing, got %q", detail2.FundKind.Value)
	}
}

func TestBuildFundBankLookup(t *testing.T) {
	e := New(nil, map[string]string{"www.bdo.com.ph": "BDO"}, 1, zerolog.Nop())

	rec := models.RawListingRecord{Symbol: "AAA:PM", Name: "abc growth UITF"}
	detail := models.EntityDetail{
		Symbol:        "AAA:PM",
		Website:       models.SomeString("https://www.bdo.com.ph/trust"),
		InceptionDate: models.SomeString("2015-01-01"),
		Currency:      models.SomeString("PHP"),
	}

	fund := e.BuildFund(rec, detail)
	if fund.Bank != "BDO" {
		t.Errorf("bank = %q, want BDO", fund.Bank)
	}
	if fund.Name != "Abc Growth Fund" {
		t.Errorf("name = %q, want normalized Abc Growth Fund", fund.Name)
	}

	// Unmapped website: bank unresolved, record retained.
	detail.Website = models.SomeString("https://www.unknownbank.ph")
	fund = e.BuildFund(rec, detail)
	if fund.Bank != "" {
		t.Errorf("bank = %q, want unresolved", fund.Bank)
	}
	if fund.Symbol != "AAA:PM" {
		t.Errorf("record must be retained with its symbol")
	}
}

type mapDetailSource struct {
	docs map[string]map[string]string
}

func (m *mapDetailSource) FetchDetail(ctx context.Context, symbol string) (map[string]string, []string, error) {
	flat, keys := flatDoc(m.docs[symbol])
	return flat, keys, nil
}

func TestEnrichAllPreservesInputOrder(t *testing.T) {
	src := &mapDetailSource{docs: map[string]map[string]string{
		"AAA:PM": {"fundamentals.currency": "PHP"},
		"BBB:PM": {"fundamentals.currency": "USD"},
		"CCC:PM": {},
	}}
	e := New(src, nil, 4, zerolog.Nop())

	records := []models.RawListingRecord{
		{Symbol: "CCC:PM", Name: "c"},
		{Symbol: "AAA:PM", Name: "a"},
		{Symbol: "BBB:PM", Name: "b"},
	}

	results := e.EnrichAll(context.Background(), records)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"CCC:PM", "AAA:PM", "BBB:PM"} {
		if results[i].Record.Symbol != want {
			t.Errorf("result %d symbol = %q, want %q", i, results[i].Record.Symbol, want)
		}
	}
}
