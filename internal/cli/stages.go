package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"uitf-catalog/internal/models"
	"uitf-catalog/internal/pipeline"
	"uitf-catalog/pkg/utils"
)

// requirePipeline fails early when the store could not be opened.
func requirePipeline(app *App) (*pipeline.Pipeline, error) {
	if app.Store == nil {
		return nil, fmt.Errorf("data store unavailable")
	}
	return app.Pipeline()
}

func newCollectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Collect listing records for the configured queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p, err := requirePipeline(app)
			if err != nil {
				return err
			}

			records, err := p.Collect(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}
			output.Success("Collected %s listing records", utils.FormatCount(int64(len(records))))
			return nil
		},
	}
}

func newEnrichCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Build Catalog A from the listing records",
		Long: `Collect the listing records (served from cache when already fetched),
fetch each symbol's detail document and build the symbol-bearing catalog.
Non-trust funds are filtered out; a fund whose kind could not be
determined is kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p, err := requirePipeline(app)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			records, err := p.Collect(ctx)
			if err != nil {
				return err
			}
			funds, err := p.BuildCatalogA(ctx, records)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(funds)
			}
			output.Success("Catalog A: %d funds from %d listing records", len(funds), len(records))
			return nil
		},
	}
}

func newReconcileCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the two catalogs into the fund matrix",
		Long: `Fetch the bulk fund table (Catalog B), then match its rows against the
stored Catalog A: exact normalized-name join first, then the
(bank, currency, inception) composite key, then manual overrides.
Ambiguous matches are excluded and reported, never guessed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p, err := requirePipeline(app)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			funds, err := app.Store.GetFunds(ctx)
			if err != nil {
				return err
			}
			if len(funds) == 0 {
				return fmt.Errorf("catalog A is empty; run 'uitfcat enrich' first")
			}

			infos, err := p.BuildCatalogB(ctx)
			if err != nil {
				return err
			}

			result, err := p.Reconcile(ctx, funds, infos)
			if err != nil {
				return err
			}

			diag := result.Diagnostics
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"matrix":           len(result.Matrix),
					"matched_pass1":    diag.MatchedPass1,
					"matched_pass2":    diag.MatchedPass2,
					"matched_override": diag.MatchedOverride,
					"ambiguous":        len(diag.Ambiguous),
					"unmatched_a":      len(diag.UnmatchedA),
					"unmatched_b":      len(diag.UnmatchedB),
				})
			}

			output.Success("Matrix: %d rows (pass1 %d, pass2 %d, override %d)",
				len(result.Matrix), diag.MatchedPass1, diag.MatchedPass2, diag.MatchedOverride)
			matrixTable(output, result.Matrix)
			for _, a := range diag.Ambiguous {
				output.Warning("  ambiguous [pass %d] %s: %v", a.Pass, a.Key, a.Candidates)
			}
			if len(diag.UnmatchedB) > 0 {
				output.Dim("  %d Catalog B rows and %d Catalog A symbols left unmatched",
					len(diag.UnmatchedB), len(diag.UnmatchedA))
			}
			return nil
		},
	}
}

// matrixTable renders the reconciled catalog with formatted money columns.
func matrixTable(output *Output, matrix []models.ReconciledFund) {
	table := NewTable(output, "Symbol", "Bank", "Name", "NAVPU", "Min Initial")
	for _, row := range matrix {
		table.AddRow(row.Symbol, row.Bank, row.Name,
			utils.FormatPeso(row.NAVPU), utils.FormatPeso(row.MinInitial))
	}
	table.Render()
}

func newSeriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "series",
		Short: "Ingest price history for the matrix symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p, err := requirePipeline(app)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			matrix, err := app.Store.GetMatrix(ctx)
			if err != nil {
				return err
			}
			if len(matrix) == 0 {
				return fmt.Errorf("matrix is empty; run 'uitfcat reconcile' first")
			}

			points, err := p.IngestSeries(ctx, matrix)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]int{"symbols": len(matrix), "points": len(points)})
			}
			output.Success("Price table: %s points across %d symbols",
				utils.FormatCount(int64(len(points))), len(matrix))
			return nil
		},
	}
}

func newReturnsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "returns",
		Short: "Derive period returns from the stored price table",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p, err := requirePipeline(app)
			if err != nil {
				return err
			}

			rows, err := p.DeriveReturns(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}

			table := NewTable(output, "Symbol", "Period", "Return")
			for _, r := range rows {
				table.AddRow(r.Symbol, r.Period, utils.FormatPercent(r.ReturnPct))
			}
			table.Render()
			return nil
		},
	}
}
