package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"uitf-catalog/internal/store"
)

func newExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the stored artifacts as CSV files",
		Long: `Write the reconciled matrix, the price table and the derived returns to
CSV files under the data directory. Column names are the stable output
contract; downstream consumers key on them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("data store unavailable")
			}
			ctx := cmd.Context()

			exporter, err := store.NewCSVExporter(app.Config.Pipeline.DataDir)
			if err != nil {
				return err
			}

			matrix, err := app.Store.GetMatrix(ctx)
			if err != nil {
				return err
			}
			matrixPath, err := exporter.ExportMatrix(matrix)
			if err != nil {
				return err
			}

			points, err := app.Store.GetAllPricePoints(ctx)
			if err != nil {
				return err
			}
			pricesPath, err := exporter.ExportPrices(points)
			if err != nil {
				return err
			}

			returns, err := app.Store.GetReturns(ctx)
			if err != nil {
				return err
			}
			returnsPath, err := exporter.ExportReturns(returns)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{
					"matrix":  matrixPath,
					"prices":  pricesPath,
					"returns": returnsPath,
				})
			}
			output.Success("Exported %d matrix rows to %s", len(matrix), matrixPath)
			output.Success("Exported %d price points to %s", len(points), pricesPath)
			output.Success("Exported %d return rows to %s", len(returns), returnsPath)
			return nil
		},
	}
}
