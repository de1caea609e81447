package fetcher

import (
	"context"

	"crypto-tracker/internal/model"
)

// SnapshotFetcher retrieves the current ranked asset list from the provider.
type SnapshotFetcher interface {
	FetchTopAssets(ctx context.Context) (model.SnapshotBatch, error)
}
