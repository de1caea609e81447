package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"crypto-tracker/internal/model"
)

const createSnapshotTableSQL = `CREATE TABLE IF NOT EXISTS %s (
    rank               INTEGER     NOT NULL,
    symbol             TEXT        NOT NULL,
    name               TEXT        NOT NULL,
    price_usd          NUMERIC     NOT NULL,
    market_cap_usd     NUMERIC     NOT NULL,
    volume_24h_usd     NUMERIC     NOT NULL,
    percent_change_24h NUMERIC,
    fetched_at         TIMESTAMPTZ NOT NULL
);`

const insertSnapshotSQL = `INSERT INTO %s (
    rank, symbol, name, price_usd, market_cap_usd, volume_24h_usd, percent_change_24h, fetched_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

// Postgres keeps exactly one batch in a table: each write deletes the
// previous rows and inserts the new batch in a single transaction, so the
// table is a live view of the latest poll, not a history.
type Postgres struct {
	pool   *pgxpool.Pool
	table  string
	logger zerolog.Logger
}

// NewPostgres wires a pgx pool into a Postgres sink and ensures the table exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, table string, logger zerolog.Logger) (*Postgres, error) {
	p := &Postgres{
		pool:   pool,
		table:  table,
		logger: logger.With().Str("component", "postgres_sink").Logger(),
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(createSnapshotTableSQL, table)); err != nil {
		return nil, fmt.Errorf("ensure table %s: %w", table, err)
	}
	return p, nil
}

// Write replaces the table contents with the batch.
func (p *Postgres) Write(ctx context.Context, batch model.SnapshotBatch) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s;", p.table)); err != nil {
		return fmt.Errorf("clear snapshot table: %w", err)
	}

	insertSQL := fmt.Sprintf(insertSnapshotSQL, p.table)
	for _, asset := range batch.Assets {
		var change interface{}
		if asset.PercentChange24 != nil {
			change = asset.PercentChange24.String()
		}
		if _, err := tx.Exec(ctx, insertSQL,
			asset.Rank,
			asset.Symbol,
			asset.Name,
			asset.PriceUSD.String(),
			asset.MarketCapUSD.String(),
			asset.Volume24hUSD.String(),
			change,
			asset.FetchedAt,
		); err != nil {
			return fmt.Errorf("insert snapshot row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}

	p.logger.Debug().Str("table", p.table).Int("rows", batch.Len()).Msg("snapshot table replaced")
	return nil
}

// Close releases the underlying pool resources.
func (p *Postgres) Close() error {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
	return nil
}

var _ TabularDataSink = (*Postgres)(nil)
