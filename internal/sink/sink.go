package sink

import (
	"context"

	"crypto-tracker/internal/model"
)

// TabularDataSink persists one complete batch per call. Every successful
// Write fully replaces the previous contents with the given batch; a failed
// Write leaves the destination as it was and is recoverable on the next cycle.
type TabularDataSink interface {
	Write(ctx context.Context, batch model.SnapshotBatch) error
	Close() error
}

// Column headers shared by the file-backed sinks, in row order.
var columns = []string{
	"Rank",
	"Name",
	"Symbol",
	"Current Price (USD)",
	"Market Capitalization (USD)",
	"24h Trading Volume (USD)",
	"24h Price Change (%)",
	"Fetched At (UTC)",
}
