// Package reconcile merges the symbol-bearing catalog (A) with the
// attribute-rich catalog (B) by multi-pass identity matching.
//
// Three ordered passes, each only considering Catalog B rows without a
// symbol and Catalog A symbols not consumed by an earlier match:
//
//  1. exact normalized-name join, restricted to rows whose bank appears in
//     Catalog A's bank set
//  2. composite-key search on (bank, currency, inception date), accepted
//     only when exactly one candidate remains in the shrinking pool
//  3. manual overrides, applied last and unconditionally
//
// Ambiguity is handled uniformly in passes 1 and 2: the rows involved stay
// unmatched and the condition is surfaced in the diagnostics, never
// resolved by an arbitrary pick.
package reconcile

import (
	"github.com/rs/zerolog"

	apperrors "uitf-catalog/internal/errors"
	"uitf-catalog/internal/logging"
	"uitf-catalog/internal/models"
	"uitf-catalog/internal/normalize"
)

// Assignment records which pass matched a Catalog B row to a symbol.
type Assignment struct {
	Symbol string
	Pass   int
}

// Assignments maps FundInfo.InfoKey() to its match. Each pass takes the
// previous pass's accumulator and returns a new one; no pass mutates its
// inputs.
type Assignments map[string]Assignment

// Diagnostics reports what the engine could and could not match. The gap
// between the catalog sizes and the matrix size is an expected, reportable
// metric, not a defect.
type Diagnostics struct {
	CatalogASize    int
	CatalogBSize    int
	MatchedPass1    int
	MatchedPass2    int
	MatchedOverride int
	Ambiguous       []*apperrors.AmbiguousMatchError
	UnmatchedB      []string // Catalog B info keys left without a symbol
	UnmatchedA      []string // Catalog A symbols absent from the matrix
}

// Result is the reconciled catalog plus its diagnostics.
type Result struct {
	Matrix      []models.ReconciledFund
	Assigned    Assignments
	Diagnostics Diagnostics
}

// Engine runs the matching passes.
type Engine struct {
	overrides map[string]string
	logger    zerolog.Logger
}

// New creates an engine. overrides maps an exact Catalog B fund name to a
// Catalog A symbol.
func New(overrides map[string]string, logger zerolog.Logger) *Engine {
	return &Engine{
		overrides: overrides,
		logger:    logging.WithStage(logger, "reconcile"),
	}
}

// Reconcile merges the two catalogs. Catalog B rows must already be
// deduplicated on (bank, fund name) and bank-canonicalized; Catalog A rows
// must be unique per symbol. Iteration follows Catalog B's row order, so
// the result is reproducible for a fixed input.
func (e *Engine) Reconcile(funds []models.Fund, infos []models.FundInfo) Result {
	diag := Diagnostics{CatalogASize: len(funds), CatalogBSize: len(infos)}

	assigned := Assignments{}
	assigned, ambig1 := passExactName(funds, infos, assigned)
	diag.Ambiguous = append(diag.Ambiguous, ambig1...)
	diag.MatchedPass1 = len(assigned)

	assigned, ambig2 := passCompositeKey(funds, infos, assigned)
	diag.Ambiguous = append(diag.Ambiguous, ambig2...)
	diag.MatchedPass2 = len(assigned) - diag.MatchedPass1

	assigned = passOverrides(infos, e.overrides, assigned)
	diag.MatchedOverride = len(assigned) - diag.MatchedPass1 - diag.MatchedPass2

	for _, a := range diag.Ambiguous {
		e.logger.Warn().Int("pass", a.Pass).Str("key", a.Key).
			Strs("candidates", a.Candidates).Msg("Ambiguous match excluded")
	}
	for _, info := range infos {
		if a, ok := assigned[info.InfoKey()]; ok {
			logging.LogMatch(e.logger, a.Pass, info.Bank, info.FundName, a.Symbol)
		}
	}

	matrix, unmatchedA, unmatchedB := join(funds, infos, assigned)
	diag.UnmatchedA = unmatchedA
	diag.UnmatchedB = unmatchedB

	e.logger.Info().
		Int("catalog_a", diag.CatalogASize).
		Int("catalog_b", diag.CatalogBSize).
		Int("matrix", len(matrix)).
		Int("pass1", diag.MatchedPass1).
		Int("pass2", diag.MatchedPass2).
		Int("override", diag.MatchedOverride).
		Msg("Reconciliation complete")

	return Result{Matrix: matrix, Assigned: assigned, Diagnostics: diag}
}

// passExactName joins on the normalized fund name, restricted to Catalog B
// rows whose bank is present in Catalog A's bank set. A name carried by
// more than one Catalog B row, or matching more than one Catalog A symbol,
// is ambiguous: nothing is assigned and the collision is surfaced.
func passExactName(funds []models.Fund, infos []models.FundInfo, prev Assignments) (Assignments, []*apperrors.AmbiguousMatchError) {
	next := clone(prev)
	var ambiguous []*apperrors.AmbiguousMatchError

	bankSet := map[string]struct{}{}
	symbolsByName := map[string][]string{}
	for _, f := range funds {
		if f.Bank != "" {
			bankSet[f.Bank] = struct{}{}
		}
		name := normalize.Name(f.Name)
		symbolsByName[name] = append(symbolsByName[name], f.Symbol)
	}

	// Group eligible B rows by normalized name to detect duplicate
	// collisions before assigning anything.
	infoKeysByName := map[string][]string{}
	nameOrder := []string{}
	for _, info := range infos {
		if _, done := next[info.InfoKey()]; done {
			continue
		}
		if _, ok := bankSet[info.Bank]; !ok {
			continue
		}
		name := normalize.Name(info.FundName)
		if len(infoKeysByName[name]) == 0 {
			nameOrder = append(nameOrder, name)
		}
		infoKeysByName[name] = append(infoKeysByName[name], info.InfoKey())
	}

	consumed := consumedSymbols(next)
	for _, name := range nameOrder {
		symbols := available(symbolsByName[name], consumed)
		if len(symbols) == 0 {
			continue
		}
		keys := infoKeysByName[name]
		if len(keys) > 1 {
			// Two B rows claim the same A name: a data-quality
			// condition the engine does not silently resolve.
			ambiguous = append(ambiguous, apperrors.NewAmbiguousMatchError(1, name, keys))
			continue
		}
		if len(symbols) > 1 {
			ambiguous = append(ambiguous, apperrors.NewAmbiguousMatchError(1, name, symbols))
			continue
		}
		next[keys[0]] = Assignment{Symbol: symbols[0], Pass: 1}
		consumed[symbols[0]] = struct{}{}
	}
	return next, ambiguous
}

// passCompositeKey matches remaining Catalog B rows on identical
// (bank, currency, inception date). A match is accepted only when exactly
// one unconsumed Catalog A candidate exists; the pool shrinks as matches
// are made, so rows are evaluated one at a time in Catalog B's row order.
func passCompositeKey(funds []models.Fund, infos []models.FundInfo, prev Assignments) (Assignments, []*apperrors.AmbiguousMatchError) {
	next := clone(prev)
	var ambiguous []*apperrors.AmbiguousMatchError

	consumed := consumedSymbols(next)
	for _, info := range infos {
		if _, done := next[info.InfoKey()]; done {
			continue
		}
		// An empty component would join on absence, not identity.
		if info.Bank == "" || info.Currency == "" || info.InceptionDate == "" {
			continue
		}

		var candidates []string
		for _, f := range funds {
			if _, taken := consumed[f.Symbol]; taken {
				continue
			}
			if f.Bank == info.Bank && f.Currency == info.Currency && f.InceptionDate == info.InceptionDate {
				candidates = append(candidates, f.Symbol)
			}
		}

		switch len(candidates) {
		case 0:
			// leave unmatched
		case 1:
			next[info.InfoKey()] = Assignment{Symbol: candidates[0], Pass: 2}
			consumed[candidates[0]] = struct{}{}
		default:
			ambiguous = append(ambiguous, apperrors.NewAmbiguousMatchError(2, info.InfoKey(), candidates))
		}
	}
	return next, ambiguous
}

// passOverrides applies the manual mapping from exact Catalog B fund name
// to symbol. Overrides are unconditional: they may replace an earlier
// pass's assignment, and they evict any other row holding the overridden
// symbol so the unique-symbol invariant survives.
func passOverrides(infos []models.FundInfo, overrides map[string]string, prev Assignments) Assignments {
	next := clone(prev)
	for _, info := range infos {
		symbol, ok := overrides[info.FundName]
		if !ok {
			continue
		}
		for key, a := range next {
			if a.Symbol == symbol && key != info.InfoKey() {
				delete(next, key)
			}
		}
		next[info.InfoKey()] = Assignment{Symbol: symbol, Pass: 3}
	}
	return next
}

// join inner-joins the catalogs on the assigned symbols. Rows of either
// catalog without a counterpart are dropped entirely; there are no partial
// rows in the matrix.
func join(funds []models.Fund, infos []models.FundInfo, assigned Assignments) (matrix []models.ReconciledFund, unmatchedA, unmatchedB []string) {
	fundBySymbol := make(map[string]models.Fund, len(funds))
	for _, f := range funds {
		fundBySymbol[f.Symbol] = f
	}

	joined := map[string]struct{}{}
	for _, info := range infos {
		a, ok := assigned[info.InfoKey()]
		if !ok {
			unmatchedB = append(unmatchedB, info.InfoKey())
			continue
		}
		fund, ok := fundBySymbol[a.Symbol]
		if !ok {
			unmatchedB = append(unmatchedB, info.InfoKey())
			continue
		}
		joined[a.Symbol] = struct{}{}
		matrix = append(matrix, mergeRow(fund, info))
	}

	for _, f := range funds {
		if _, ok := joined[f.Symbol]; !ok {
			unmatchedA = append(unmatchedA, f.Symbol)
		}
	}
	return matrix, unmatchedA, unmatchedB
}

// mergeRow builds one matrix row: the symbol and name come from Catalog A,
// descriptive attributes from Catalog B, with Catalog A filling any blank
// shared field.
func mergeRow(fund models.Fund, info models.FundInfo) models.ReconciledFund {
	pick := func(b, a string) string {
		if b != "" {
			return b
		}
		return a
	}
	return models.ReconciledFund{
		Symbol:             fund.Symbol,
		Name:               fund.Name,
		Bank:               pick(info.Bank, fund.Bank),
		InceptionDate:      pick(info.InceptionDate, fund.InceptionDate),
		Currency:           pick(info.Currency, fund.Currency),
		FundClassification: info.FundClassification,
		RiskClassification: info.RiskClassification,
		LastUploadedDate:   info.LastUploadedDate,
		NAVPU:              info.NAVPU,
		YTDReturnPct:       info.YTDReturnPct,
		OneYearReturnPct:   info.OneYearReturnPct,
		ThreeYearReturnPct: info.ThreeYearReturnPct,
		FiveYearReturnPct:  info.FiveYearReturnPct,
		TrustFeePct:        info.TrustFeePct,
		MinInitial:         info.MinInitial,
		MinAdditional:      info.MinAdditional,
		MinHoldingDays:     info.MinHoldingDays,
		SettlementDays:     info.SettlementDays,
	}
}

func clone(a Assignments) Assignments {
	out := make(Assignments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func consumedSymbols(a Assignments) map[string]struct{} {
	out := make(map[string]struct{}, len(a))
	for _, v := range a {
		out[v.Symbol] = struct{}{}
	}
	return out
}

func available(symbols []string, consumed map[string]struct{}) []string {
	var out []string
	for _, s := range symbols {
		if _, taken := consumed[s]; !taken {
			out = append(out, s)
		}
	}
	return out
}
