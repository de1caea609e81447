package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"crypto-tracker/internal/model"
)

// CSV writes each batch to a flat file, truncating the previous contents.
type CSV struct {
	path   string
	logger zerolog.Logger
}

// NewCSV constructs a CSV sink for the given path.
func NewCSV(path string, logger zerolog.Logger) *CSV {
	return &CSV{
		path:   path,
		logger: logger.With().Str("component", "csv_sink").Logger(),
	}
}

// Write replaces the file contents with the batch.
func (c *CSV) Write(ctx context.Context, batch model.SnapshotBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeCSVFile(c.path, batch); err != nil {
		return err
	}
	c.logger.Debug().Str("path", c.path).Int("rows", batch.Len()).Msg("csv written")
	return nil
}

// Close is a no-op; the file is reopened per write.
func (c *CSV) Close() error { return nil }

func writeCSVFile(path string, batch model.SnapshotBatch) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open csv %s: %w", path, err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(columns); err != nil {
		file.Close()
		return err
	}

	for _, asset := range batch.Assets {
		if err := writer.Write(csvRecord(asset)); err != nil {
			file.Close()
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func csvRecord(a model.AssetSnapshot) []string {
	change := ""
	if a.PercentChange24 != nil {
		change = a.PercentChange24.String()
	}
	return []string{
		fmt.Sprintf("%d", a.Rank),
		a.Name,
		a.Symbol,
		a.PriceUSD.String(),
		a.MarketCapUSD.String(),
		a.Volume24hUSD.String(),
		change,
		a.FetchedAt.UTC().Format(time.RFC3339),
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var _ TabularDataSink = (*CSV)(nil)
