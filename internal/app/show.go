package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show fetches one batch and prints it as a table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	batch, err := a.newFetcher().FetchTopAssets(ctx)
	if err != nil {
		return err
	}
	if batch.Len() == 0 {
		fmt.Fprintln(os.Stdout, "no assets returned")
		return nil
	}

	assets := batch.Assets
	if opts.Limit > 0 && opts.Limit < len(assets) {
		assets = assets[:opts.Limit]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tSymbol\tName\tPrice (USD)\tMarket Cap (USD)\t24h Change%")

	for _, asset := range assets {
		change := "-"
		if asset.PercentChange24 != nil {
			change = formatDecimal(*asset.PercentChange24, 2)
		}
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%s\t%s\n",
			asset.Rank,
			asset.Symbol,
			asset.Name,
			formatDecimal(asset.PriceUSD, 2),
			asset.MarketCapUSD.StringFixed(0),
			change,
		)
	}

	if err := writer.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "fetched %d assets at %s\n", batch.Len(), batch.FetchedAt.Format(time.RFC3339))
	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
