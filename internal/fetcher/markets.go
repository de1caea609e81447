package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-tracker/internal/model"
)

const marketsPath = "/coins/markets"

// MarketsOptions parameterise the CoinGecko markets fetcher.
type MarketsOptions struct {
	BaseURL    string
	VsCurrency string
	MaxAssets  int
	Timeout    time.Duration
	UserAgent  string
}

// Markets fetches the ranked asset list from CoinGecko.
type Markets struct {
	opts    MarketsOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewMarkets constructs a markets fetcher.
func NewMarkets(opts MarketsOptions, logger zerolog.Logger) *Markets {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	if opts.VsCurrency == "" {
		opts.VsCurrency = "usd"
	}
	if opts.MaxAssets <= 0 {
		opts.MaxAssets = 50
	}

	return &Markets{
		opts:    opts,
		logger:  logger.With().Str("component", "markets_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchTopAssets retrieves the top assets by market cap as one batch.
func (m *Markets) FetchTopAssets(ctx context.Context) (model.SnapshotBatch, error) {
	query := url.Values{}
	query.Set("vs_currency", m.opts.VsCurrency)
	query.Set("order", "market_cap_desc")
	query.Set("per_page", strconv.Itoa(m.opts.MaxAssets))
	query.Set("page", "1")
	query.Set("sparkline", "false")

	endpoint := m.baseURL + marketsPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.SnapshotBatch{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "cryptotracker/1.0")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return model.SnapshotBatch{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SnapshotBatch{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return model.SnapshotBatch{}, parseHTTPError(resp.StatusCode, payload)
	}

	var records []marketRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return model.SnapshotBatch{}, fmt.Errorf("decode markets payload: %w", err)
	}

	fetchedAt := time.Now().UTC()
	batch := m.mapRecords(records, fetchedAt)

	m.logger.Debug().Int("records", len(records)).Int("mapped", batch.Len()).Msg("markets fetched")
	return batch, nil
}

// mapRecords converts decoded provider records into a validated batch.
// Malformed records are skipped and logged so one bad row cannot block
// the rest of the ranking. Pure transformation; no I/O.
func (m *Markets) mapRecords(records []marketRecord, fetchedAt time.Time) model.SnapshotBatch {
	assets := make([]model.AssetSnapshot, 0, len(records))
	for i, rec := range records {
		snapshot, err := rec.toSnapshot(i+1, fetchedAt)
		if err != nil {
			m.logger.Warn().Err(err).Str("id", rec.ID).Int("position", i+1).Msg("skipping malformed record")
			continue
		}
		assets = append(assets, snapshot)
	}
	return model.SnapshotBatch{Assets: assets, FetchedAt: fetchedAt}
}

type marketRecord struct {
	ID        string       `json:"id"`
	Symbol    string       `json:"symbol"`
	Name      string       `json:"name"`
	Rank      *int         `json:"market_cap_rank"`
	Price     *json.Number `json:"current_price"`
	MarketCap *json.Number `json:"market_cap"`
	Volume    *json.Number `json:"total_volume"`
	Change24h *json.Number `json:"price_change_percentage_24h"`
}

func (r marketRecord) toSnapshot(position int, fetchedAt time.Time) (model.AssetSnapshot, error) {
	if strings.TrimSpace(r.Symbol) == "" || strings.TrimSpace(r.Name) == "" {
		return model.AssetSnapshot{}, fmt.Errorf("missing symbol or name")
	}

	price, err := requireDecimal(r.Price, "current_price")
	if err != nil {
		return model.AssetSnapshot{}, err
	}
	marketCap, err := requireDecimal(r.MarketCap, "market_cap")
	if err != nil {
		return model.AssetSnapshot{}, err
	}
	volume, err := requireDecimal(r.Volume, "total_volume")
	if err != nil {
		return model.AssetSnapshot{}, err
	}
	if price.IsNegative() || marketCap.IsNegative() {
		return model.AssetSnapshot{}, fmt.Errorf("negative price or market cap")
	}

	rank := position
	if r.Rank != nil && *r.Rank > 0 {
		rank = *r.Rank
	}

	snapshot := model.AssetSnapshot{
		Rank:         rank,
		Symbol:       strings.ToUpper(r.Symbol),
		Name:         r.Name,
		PriceUSD:     price,
		MarketCapUSD: marketCap,
		Volume24hUSD: volume,
		FetchedAt:    fetchedAt,
	}

	// price_change_percentage_24h is null for freshly listed assets.
	if r.Change24h != nil {
		change, err := decimal.NewFromString(r.Change24h.String())
		if err != nil {
			return model.AssetSnapshot{}, fmt.Errorf("parse price_change_percentage_24h: %w", err)
		}
		snapshot.PercentChange24 = &change
	}

	return snapshot, nil
}

func requireDecimal(n *json.Number, field string) (decimal.Decimal, error) {
	if n == nil {
		return decimal.Decimal{}, fmt.Errorf("missing %s", field)
	}
	value, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s: %w", field, err)
	}
	return value, nil
}

type errorResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Error string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Status.ErrorMessage != "" {
			return &ProviderError{StatusCode: status, Body: apiErr.Status.ErrorMessage}
		}
		if apiErr.Error != "" {
			return &ProviderError{StatusCode: status, Body: apiErr.Error}
		}
	}
	return &ProviderError{StatusCode: status, Body: string(payload)}
}

var _ SnapshotFetcher = (*Markets)(nil)
