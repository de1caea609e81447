package sink

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"crypto-tracker/internal/model"
)

// ExcelOptions parameterise the spreadsheet sink.
type ExcelOptions struct {
	Path      string
	Sheet     string
	CSVBackup bool
}

// Excel writes each batch into an xlsx workbook, rebuilding the sheet
// from scratch so the file always reflects exactly the latest batch.
// With CSVBackup enabled a sibling .csv is written alongside, mirroring
// the workbook contents.
type Excel struct {
	opts   ExcelOptions
	logger zerolog.Logger
}

// NewExcel constructs a spreadsheet sink.
func NewExcel(opts ExcelOptions, logger zerolog.Logger) *Excel {
	if opts.Sheet == "" {
		opts.Sheet = "CryptocurrencyData"
	}
	return &Excel{
		opts:   opts,
		logger: logger.With().Str("component", "excel_sink").Logger(),
	}
}

// Write saves the batch to the workbook; a locked or unwritable file
// surfaces as an error for this cycle only.
func (e *Excel) Write(ctx context.Context, batch model.SnapshotBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName(file.GetSheetName(0), e.opts.Sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err := file.SetSheetRow(e.opts.Sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, asset := range batch.Assets {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := excelRow(asset)
		if err := file.SetSheetRow(e.opts.Sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := ensureDir(e.opts.Path); err != nil {
		return err
	}
	if err := file.SaveAs(e.opts.Path); err != nil {
		return fmt.Errorf("save workbook %s: %w", e.opts.Path, err)
	}

	if e.opts.CSVBackup {
		backup := csvBackupPath(e.opts.Path)
		if err := writeCSVFile(backup, batch); err != nil {
			// workbook is already saved; the backup is best effort
			e.logger.Warn().Err(err).Str("path", backup).Msg("csv backup failed")
		} else {
			e.logger.Debug().Str("path", backup).Msg("csv backup written")
		}
	}

	return nil
}

// Close is a no-op; the workbook is rebuilt per write.
func (e *Excel) Close() error { return nil }

func excelRow(a model.AssetSnapshot) []interface{} {
	var change interface{}
	if a.PercentChange24 != nil {
		change = a.PercentChange24.InexactFloat64()
	}
	return []interface{}{
		a.Rank,
		a.Name,
		a.Symbol,
		a.PriceUSD.InexactFloat64(),
		a.MarketCapUSD.InexactFloat64(),
		a.Volume24hUSD.InexactFloat64(),
		change,
		a.FetchedAt.UTC().Format(time.RFC3339),
	}
}

func csvBackupPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".csv"
}

var _ TabularDataSink = (*Excel)(nil)
