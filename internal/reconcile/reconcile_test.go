package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"uitf-catalog/internal/models"
)

func fundA(symbol, name string) models.Fund {
	return models.Fund{
		Symbol:        symbol,
		Name:          name,
		Bank:          "BDO",
		InceptionDate: "2015-01-01",
		Currency:      "PHP",
	}
}

func infoB(fundName string) models.FundInfo {
	return models.FundInfo{
		Bank:               "BDO",
		FundName:           fundName,
		Currency:           "PHP",
		InceptionDate:      "2015-01-01",
		FundClassification: "Equity",
		RiskClassification: "Aggressive",
	}
}

func TestExactNameMatch(t *testing.T) {
	e := New(nil, zerolog.Nop())

	res := e.Reconcile(
		[]models.Fund{fundA("AAA:PM", "Abc Growth Fund")},
		[]models.FundInfo{infoB("ABC Growth Fund")},
	)

	if len(res.Matrix) != 1 {
		t.Fatalf("expected 1 matrix row, got %d", len(res.Matrix))
	}
	row := res.Matrix[0]
	if row.Symbol != "AAA:PM" {
		t.Errorf("symbol = %q, want AAA:PM", row.Symbol)
	}
	if row.FundClassification != "Equity" {
		t.Errorf("matrix row lost Catalog B attributes: %+v", row)
	}
	if res.Diagnostics.MatchedPass1 != 1 {
		t.Errorf("expected a pass-1 match, diagnostics: %+v", res.Diagnostics)
	}
}

func TestExactNameMatchViaTokenReplacement(t *testing.T) {
	e := New(nil, zerolog.Nop())

	// "ABC Growth UITF" normalizes to "Abc Growth Fund" through the
	// UITF -> Fund substitution, so pass 1 still matches.
	res := e.Reconcile(
		[]models.Fund{fundA("AAA:PM", "abc Growth Fund")},
		[]models.FundInfo{infoB("ABC Growth UITF")},
	)

	if len(res.Matrix) != 1 || res.Matrix[0].Symbol != "AAA:PM" {
		t.Fatalf("expected normalization-equivalent names to match, got %+v", res.Matrix)
	}
	if res.Diagnostics.MatchedPass1 != 1 {
		t.Errorf("expected pass-1 match, diagnostics: %+v", res.Diagnostics)
	}
}

func TestCompositeKeyMatch(t *testing.T) {
	e := New(nil, zerolog.Nop())

	// Names differ entirely, but (bank, currency, inception) matches a
	// single candidate.
	res := e.Reconcile(
		[]models.Fund{fundA("AAA:PM", "Something Else Entirely")},
		[]models.FundInfo{infoB("Peso Equity Fund")},
	)

	if len(res.Matrix) != 1 || res.Matrix[0].Symbol != "AAA:PM" {
		t.Fatalf("expected composite-key match, got %+v", res.Matrix)
	}
	if res.Diagnostics.MatchedPass2 != 1 {
		t.Errorf("expected pass-2 match, diagnostics: %+v", res.Diagnostics)
	}
}

func TestDuplicateNameCollisionExcludesBoth(t *testing.T) {
	e := New(nil, zerolog.Nop())

	infoA := infoB("Abc Growth Fund")
	infoA.InceptionDate = "2015-02-02" // no composite-key escape hatch
	infoDup := infoB("ABC Growth UITF") // same normalized name
	infoDup.InceptionDate = "2016-06-01"

	res := e.Reconcile(
		[]models.Fund{fundA("AAA:PM", "Abc Growth Fund")},
		[]models.FundInfo{infoA, infoDup},
	)

	if len(res.Matrix) != 0 {
		t.Fatalf("colliding rows must not be silently assigned, got %+v", res.Matrix)
	}
	if len(res.Diagnostics.Ambiguous) == 0 {
		t.Error("collision must be surfaced in diagnostics")
	}
	if len(res.Diagnostics.UnmatchedB) != 2 {
		t.Errorf("both rows should stay unmatched, got %v", res.Diagnostics.UnmatchedB)
	}
}

func TestOverrideDisambiguatesCollision(t *testing.T) {
	e := New(map[string]string{"ABC Growth UITF": "AAA:PM"}, zerolog.Nop())

	infoA := infoB("Abc Growth Fund")
	infoA.InceptionDate = "2015-02-02"
	infoDup := infoB("ABC Growth UITF")
	infoDup.InceptionDate = "2016-06-01"

	res := e.Reconcile(
		[]models.Fund{fundA("AAA:PM", "Abc Growth Fund")},
		[]models.FundInfo{infoA, infoDup},
	)

	if len(res.Matrix) != 1 {
		t.Fatalf("override should produce exactly one row, got %+v", res.Matrix)
	}
	if res.Matrix[0].InceptionDate != "2016-06-01" {
		t.Errorf("override must select the named Catalog B row, got %+v", res.Matrix[0])
	}
	if res.Diagnostics.MatchedOverride != 1 {
		t.Errorf("expected an override match, diagnostics: %+v", res.Diagnostics)
	}
}

func TestOverrideOverwritesEarlierAssignment(t *testing.T) {
	e := New(map[string]string{"Completely Different Name": "AAA:PM"}, zerolog.Nop())

	res := e.Reconcile(
		[]models.Fund{fundA("AAA:PM", "Abc Growth Fund")},
		[]models.FundInfo{infoB("Abc Growth Fund"), infoB("Completely Different Name")},
	)

	// Pass 1 gives AAA:PM to the exact-name row; the override table then
	// reassigns it. The evicted row drops out of the matrix.
	if len(res.Matrix) != 1 {
		t.Fatalf("expected 1 matrix row, got %d", len(res.Matrix))
	}
	if got := res.Assigned[models.FundInfo{Bank: "BDO", FundName: "Completely Different Name"}.InfoKey()]; got.Symbol != "AAA:PM" || got.Pass != 3 {
		t.Errorf("override assignment wrong: %+v", got)
	}
}

func TestPass2AmbiguityLeavesBothUnassigned(t *testing.T) {
	e := New(nil, zerolog.Nop())

	fund1 := fundA("AAA:PM", "First Name")
	fund2 := fundA("BBB:PM", "Second Name") // same (bank, currency, inception)

	res := e.Reconcile(
		[]models.Fund{fund1, fund2},
		[]models.FundInfo{infoB("Unrelated Fund Name")},
	)

	if len(res.Matrix) != 0 {
		t.Fatalf("ambiguous composite key must not guess, got %+v", res.Matrix)
	}
	found := false
	for _, a := range res.Diagnostics.Ambiguous {
		if a.Pass == 2 {
			found = true
		}
	}
	if !found {
		t.Error("pass-2 ambiguity must be surfaced in diagnostics")
	}
}

func TestPass2ShrinkingPool(t *testing.T) {
	e := New(nil, zerolog.Nop())

	// Row 1 matches AAA:PM by name; row 2 then has exactly one composite
	// candidate left (BBB:PM) even though both funds share the key.
	res := e.Reconcile(
		[]models.Fund{fundA("AAA:PM", "Abc Growth Fund"), fundA("BBB:PM", "Other Fund")},
		[]models.FundInfo{infoB("Abc Growth Fund"), infoB("Mystery Fund")},
	)

	if len(res.Matrix) != 2 {
		t.Fatalf("expected 2 matrix rows, got %+v", res.Matrix)
	}
	byName := map[string]string{}
	for _, row := range res.Matrix {
		byName[row.Name] = row.Symbol
	}
	if byName["Abc Growth Fund"] != "AAA:PM" {
		t.Errorf("pass 1 should keep AAA:PM for the exact name, got %v", byName)
	}
	if res.Diagnostics.MatchedPass2 != 1 {
		t.Errorf("expected the leftover row matched in pass 2, diagnostics: %+v", res.Diagnostics)
	}
}

func TestReconcileFixedPoint(t *testing.T) {
	e := New(nil, zerolog.Nop())

	res := e.Reconcile(
		[]models.Fund{fundA("AAA:PM", "Abc Growth Fund"), fundA("BBB:PM", "Peso Bond Fund")},
		[]models.FundInfo{infoB("Abc Growth Fund"), infoB("Peso Bond Fund")},
	)
	if len(res.Matrix) != 2 {
		t.Fatalf("setup failed, matrix: %+v", res.Matrix)
	}

	// Feed the matrix back in as both catalogs.
	var funds []models.Fund
	var infos []models.FundInfo
	for _, row := range res.Matrix {
		funds = append(funds, models.Fund{
			Symbol: row.Symbol, Name: row.Name, Bank: row.Bank,
			InceptionDate: row.InceptionDate, Currency: row.Currency,
		})
		infos = append(infos, models.FundInfo{
			Bank: row.Bank, FundName: row.Name, Currency: row.Currency,
			InceptionDate: row.InceptionDate,
			FundClassification: row.FundClassification,
			RiskClassification: row.RiskClassification,
		})
	}

	again := e.Reconcile(funds, infos)
	if len(again.Matrix) != len(res.Matrix) {
		t.Fatalf("reconcile is not a fixed point: %d rows became %d", len(res.Matrix), len(again.Matrix))
	}
	for i, row := range again.Matrix {
		if row.Symbol != res.Matrix[i].Symbol || row.Name != res.Matrix[i].Name {
			t.Errorf("row %d changed: %+v vs %+v", i, res.Matrix[i], row)
		}
	}
}

// Property: no symbol ever appears twice in the matrix, and the matrix
// never exceeds min(|A|, |B|).
func TestProperty_UniquenessAndMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	banks := []interface{}{"BDO", "BPI", "Metrobank"}
	currencies := []interface{}{"PHP", "USD"}
	inceptions := []interface{}{"2015-01-01", "2018-06-30", "2020-02-02"}
	nameWords := []interface{}{"Growth", "Peso", "Equity", "Bond", "Balanced", "Dividend", "Money", "Market"}

	e := New(nil, zerolog.Nop())

	properties.Property("unique symbols and size bound", prop.ForAll(
		func(nA, nB int, bankIdx, curIdx, incIdx, wordIdx []int) bool {
			funds := make([]models.Fund, 0, nA)
			for i := 0; i < nA; i++ {
				funds = append(funds, models.Fund{
					Symbol:        fmt.Sprintf("SYM%d:PM", i),
					Name:          fmt.Sprintf("%s Fund %d", nameWords[wordIdx[i%len(wordIdx)]%len(nameWords)], i),
					Bank:          banks[bankIdx[i%len(bankIdx)]%len(banks)].(string),
					Currency:      currencies[curIdx[i%len(curIdx)]%len(currencies)].(string),
					InceptionDate: inceptions[incIdx[i%len(incIdx)]%len(inceptions)].(string),
				})
			}
			infos := make([]models.FundInfo, 0, nB)
			for i := 0; i < nB; i++ {
				infos = append(infos, models.FundInfo{
					Bank:          banks[bankIdx[(i+1)%len(bankIdx)]%len(banks)].(string),
					FundName:      fmt.Sprintf("%s Fund %d", nameWords[wordIdx[(i+2)%len(wordIdx)]%len(nameWords)], i),
					Currency:      currencies[curIdx[(i+1)%len(curIdx)]%len(currencies)].(string),
					InceptionDate: inceptions[incIdx[(i+1)%len(incIdx)]%len(inceptions)].(string),
				})
			}
			infos = models.DedupeFundInfo(infos)

			res := e.Reconcile(funds, infos)

			minSize := len(funds)
			if len(infos) < minSize {
				minSize = len(infos)
			}
			if len(res.Matrix) > minSize {
				return false
			}
			seen := map[string]struct{}{}
			for _, row := range res.Matrix {
				if _, dup := seen[row.Symbol]; dup {
					return false
				}
				seen[row.Symbol] = struct{}{}
			}
			return true
		},
		gen.IntRange(0, 12),
		gen.IntRange(0, 12),
		gen.SliceOfN(13, gen.IntRange(0, 2)),
		gen.SliceOfN(13, gen.IntRange(0, 1)),
		gen.SliceOfN(13, gen.IntRange(0, 2)),
		gen.SliceOfN(13, gen.IntRange(0, 7)),
	))

	properties.TestingRun(t)
}

// Property: a fixed ambiguous pass-2 scenario is deterministic — neither
// candidate is ever assigned, on every run.
func TestProperty_Pass2AmbiguityDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	e := New(nil, zerolog.Nop())

	properties.Property("two candidates sharing a composite key stay unassigned", prop.ForAll(
		func(bank, currency, inception string) bool {
			funds := []models.Fund{
				{Symbol: "AAA:PM", Name: "First", Bank: bank, Currency: currency, InceptionDate: inception},
				{Symbol: "BBB:PM", Name: "Second", Bank: bank, Currency: currency, InceptionDate: inception},
			}
			infos := []models.FundInfo{{
				Bank: bank, FundName: "Unrelated Name", Currency: currency, InceptionDate: inception,
			}}

			res := e.Reconcile(funds, infos)
			return len(res.Matrix) == 0 && len(res.Assigned) == 0
		},
		gen.OneConstOf("BDO", "BPI", "Metrobank"),
		gen.OneConstOf("PHP", "USD"),
		gen.OneConstOf("2015-01-01", "2019-09-09"),
	))

	properties.TestingRun(t)
}
