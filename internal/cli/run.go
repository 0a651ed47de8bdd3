package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"uitf-catalog/internal/models"
	"uitf-catalog/pkg/utils"
)

func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full catalog pipeline",
		Long: `Run every stage in order: collect listings, build Catalog A, fetch the
bulk fund table, reconcile the catalogs, ingest price series and derive
period returns. Each stage persists its artifact, and all remote fetches
are cached, so rerunning is safe and cheap.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("data store unavailable")
			}

			p, err := app.Pipeline()
			if err != nil {
				return err
			}

			result, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			diag := result.Diagnostics
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"catalog_a":        diag.CatalogASize,
					"catalog_b":        diag.CatalogBSize,
					"matrix":           len(result.Matrix),
					"matched_pass1":    diag.MatchedPass1,
					"matched_pass2":    diag.MatchedPass2,
					"matched_override": diag.MatchedOverride,
					"ambiguous":        len(diag.Ambiguous),
					"unmatched_a":      len(diag.UnmatchedA),
					"unmatched_b":      len(diag.UnmatchedB),
				})
			}

			output.Success("Pipeline complete")
			output.Printf("  Catalog A:  %s funds\n", utils.FormatCount(int64(diag.CatalogASize)))
			output.Printf("  Catalog B:  %s rows\n", utils.FormatCount(int64(diag.CatalogBSize)))
			output.Printf("  Matrix:     %d rows (pass1 %d, pass2 %d, override %d)\n",
				len(result.Matrix), diag.MatchedPass1, diag.MatchedPass2, diag.MatchedOverride)
			if len(diag.Ambiguous) > 0 {
				output.Warning("  Ambiguous:  %d collisions excluded", len(diag.Ambiguous))
			}
			if len(diag.UnmatchedB) > 0 {
				output.Dim("  Unmatched:  %d Catalog B rows, %d Catalog A symbols",
					len(diag.UnmatchedB), len(diag.UnmatchedA))
			}

			maybeSuggest(cmd, output, app)
			return nil
		},
	}
}

// maybeSuggest prints advisory override candidates for the unmatched
// remainder when the assist feature is configured. Suggestions are never
// applied; they are copy-paste material for mappings.toml.
func maybeSuggest(cmd *cobra.Command, output *Output, app *App) {
	if app.Suggester == nil {
		return
	}
	ctx := cmd.Context()

	funds, err := app.Store.GetFunds(ctx)
	if err != nil {
		return
	}
	infos, err := app.Store.GetFundInfo(ctx)
	if err != nil {
		return
	}
	matrix, err := app.Store.GetMatrix(ctx)
	if err != nil {
		return
	}

	matched := map[string]struct{}{}
	for _, row := range matrix {
		matched[row.Symbol] = struct{}{}
	}
	var unmatchedA []models.Fund
	for _, f := range funds {
		if _, ok := matched[f.Symbol]; !ok {
			unmatchedA = append(unmatchedA, f)
		}
	}
	var unmatchedB []models.FundInfo
	for _, info := range infos {
		if info.Symbol == "" {
			unmatchedB = append(unmatchedB, info)
		}
	}

	suggestions, err := app.Suggester.Suggest(ctx, unmatchedB, unmatchedA)
	if err != nil {
		output.Warning("Override suggestion failed: %v", err)
		return
	}
	if len(suggestions) == 0 {
		return
	}

	output.Println()
	output.Bold("Suggested overrides (review before adding to mappings.toml)")
	for _, s := range suggestions {
		output.Printf("  %q = %q  # %s confidence: %s\n", s.FundName, s.Symbol, s.Confidence, s.Reason)
	}
}
