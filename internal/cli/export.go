package cli

import (
	"github.com/spf13/cobra"

	"crypto-tracker/internal/app"
)

var (
	exportPNGPath   string
	exportCSVPath   string
	exportChartBars int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Fetch once and export the batch as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			ChartBars: exportChartBars,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG market-cap chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportChartBars, "bars", 0, "Maximum chart bars (defaults to config)")
}
