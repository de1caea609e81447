package app

import (
	"context"
	"errors"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"

	"crypto-tracker/internal/model"
	"crypto-tracker/internal/sink"
)

// Export fetches one batch and renders it as CSV and/or a PNG bar chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.ChartBars = a.Config.ResolveChartBars(opts.ChartBars)

	batch, err := a.newFetcher().FetchTopAssets(ctx)
	if err != nil {
		return err
	}
	if batch.Len() == 0 {
		a.Logger.Info().Msg("no assets returned; nothing to export")
		return nil
	}

	a.Logger.Info().Int("assets", batch.Len()).Msg("exporting batch")

	if opts.CSVPath != "" {
		csvSink := sink.NewCSV(opts.CSVPath, a.Logger)
		if err := csvSink.Write(ctx, batch); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeMarketCapPNG(opts.PNGPath, batch, opts.ChartBars); err != nil {
			return err
		}
	}

	return nil
}

func writeMarketCapPNG(path string, batch model.SnapshotBatch, maxBars int) error {
	assets := batch.Assets
	if maxBars > 0 && maxBars < len(assets) {
		assets = assets[:maxBars]
	}

	billion := 1e9
	bars := make([]chart.Value, 0, len(assets))
	for _, asset := range assets {
		bars = append(bars, chart.Value{
			Label: asset.Symbol,
			Value: asset.MarketCapUSD.InexactFloat64() / billion,
		})
	}

	graph := chart.BarChart{
		Title:    "Market Capitalization (USD billions)",
		Width:    1280,
		Height:   720,
		BarWidth: 1024 / len(bars),
		Bars:     bars,
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0fB")
			},
		},
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}
