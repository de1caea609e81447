package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetSnapshot is one ranked cryptocurrency observation at poll time.
type AssetSnapshot struct {
	Rank            int
	Symbol          string
	Name            string
	PriceUSD        decimal.Decimal
	MarketCapUSD    decimal.Decimal
	Volume24hUSD    decimal.Decimal
	PercentChange24 *decimal.Decimal
	FetchedAt       time.Time
}

// SnapshotBatch is the full rank-ordered result of one successful fetch.
// A batch is built atomically; it either reaches the sink whole or not at all.
type SnapshotBatch struct {
	Assets    []AssetSnapshot
	FetchedAt time.Time
}

// Len returns the number of assets in the batch.
func (b SnapshotBatch) Len() int {
	return len(b.Assets)
}
