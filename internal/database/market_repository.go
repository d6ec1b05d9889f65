package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/coinlens/coinlens-go/internal/models"
)

// MarketDataRepository handles bulk persistence of the collected time
// series. Every write is an upsert so re-fetching an overlapping window
// never creates duplicates.
type MarketDataRepository struct {
	pool DatabasePool
}

// NewMarketDataRepository creates a new market data repository.
func NewMarketDataRepository(pool DatabasePool) *MarketDataRepository {
	return &MarketDataRepository{pool: pool}
}

// BulkUpsertFundingRates stores funding rate rows keyed by
// (asset_id, source, funding_time).
func (r *MarketDataRepository) BulkUpsertFundingRates(ctx context.Context, rates []models.FundingRate) (int64, error) {
	if len(rates) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rate := range rates {
		batch.Queue(`
			INSERT INTO funding_rates (asset_id, source, rate, funding_time, next_funding_time, mark_price, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (asset_id, source, funding_time)
			DO UPDATE SET
				rate = EXCLUDED.rate,
				next_funding_time = EXCLUDED.next_funding_time,
				mark_price = EXCLUDED.mark_price,
				timestamp = EXCLUDED.timestamp`,
			rate.AssetID, rate.Source, rate.Rate, rate.FundingTime,
			rate.NextFundingTime, rate.MarkPrice, rate.Timestamp)
	}
	return r.drainBatch(ctx, batch, len(rates), "funding rates")
}

// BulkUpsertOHLCV stores candles keyed by (asset_id, source, interval, timestamp).
func (r *MarketDataRepository) BulkUpsertOHLCV(ctx context.Context, candles []models.OHLCV) (int64, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, candle := range candles {
		batch.Queue(`
			INSERT INTO ohlcv (asset_id, source, interval, open, high, low, close, volume, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (asset_id, source, interval, timestamp)
			DO UPDATE SET
				open = EXCLUDED.open,
				high = EXCLUDED.high,
				low = EXCLUDED.low,
				close = EXCLUDED.close,
				volume = EXCLUDED.volume`,
			candle.AssetID, candle.Source, candle.Interval, candle.Open,
			candle.High, candle.Low, candle.Close, candle.Volume, candle.Timestamp)
	}
	return r.drainBatch(ctx, batch, len(candles), "ohlcv")
}

// BulkUpsertOpenInterest stores open interest keyed by
// (asset_id, source, interval, timestamp).
func (r *MarketDataRepository) BulkUpsertOpenInterest(ctx context.Context, records []models.OpenInterest) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(`
			INSERT INTO open_interest (asset_id, source, interval, open_interest, open_interest_value, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (asset_id, source, interval, timestamp)
			DO UPDATE SET
				open_interest = EXCLUDED.open_interest,
				open_interest_value = EXCLUDED.open_interest_value`,
			record.AssetID, record.Source, record.Interval,
			record.OpenInterest, record.OpenInterestValue, record.Timestamp)
	}
	return r.drainBatch(ctx, batch, len(records), "open interest")
}

// BulkUpsertLongShortRatios stores long/short ratio samples keyed by
// (asset_id, source, interval, timestamp).
func (r *MarketDataRepository) BulkUpsertLongShortRatios(ctx context.Context, ratios []models.LongShortRatio) (int64, error) {
	if len(ratios) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, ratio := range ratios {
		batch.Queue(`
			INSERT INTO long_short_ratios (asset_id, source, interval, long_account, short_account, ratio, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (asset_id, source, interval, timestamp)
			DO UPDATE SET
				long_account = EXCLUDED.long_account,
				short_account = EXCLUDED.short_account,
				ratio = EXCLUDED.ratio`,
			ratio.AssetID, ratio.Source, ratio.Interval, ratio.LongAccount,
			ratio.ShortAccount, ratio.Ratio, ratio.Timestamp)
	}
	return r.drainBatch(ctx, batch, len(ratios), "long/short ratios")
}

// BulkUpsertLiquidations stores liquidation buckets keyed by
// (asset_id, source, side, timestamp).
func (r *MarketDataRepository) BulkUpsertLiquidations(ctx context.Context, liquidations []models.Liquidation) (int64, error) {
	if len(liquidations) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, liq := range liquidations {
		batch.Queue(`
			INSERT INTO liquidations (asset_id, source, side, price, quantity, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (asset_id, source, side, timestamp)
			DO UPDATE SET
				price = EXCLUDED.price,
				quantity = EXCLUDED.quantity`,
			liq.AssetID, liq.Source, liq.Side, liq.Price, liq.Quantity, liq.Timestamp)
	}
	return r.drainBatch(ctx, batch, len(liquidations), "liquidations")
}

var dataTypeTables = map[models.DataType]string{
	models.DataTypeFunding:        "funding_rates",
	models.DataTypeOHLCV:          "ohlcv",
	models.DataTypeOpenInterest:   "open_interest",
	models.DataTypeLongShortRatio: "long_short_ratios",
	models.DataTypeLiquidation:    "liquidations",
}

// FindLatestTimestamp returns the newest stored timestamp for an asset and
// data type, or nil when nothing is stored yet.
func (r *MarketDataRepository) FindLatestTimestamp(ctx context.Context, assetID int64, source string, dataType models.DataType) (*time.Time, error) {
	table, ok := dataTypeTables[dataType]
	if !ok {
		return nil, fmt.Errorf("unknown data type: %s", dataType)
	}

	var ts time.Time
	query := fmt.Sprintf("SELECT timestamp FROM %s WHERE asset_id = $1 AND source = $2 ORDER BY timestamp DESC LIMIT 1", table)
	err := r.pool.QueryRow(ctx, query, assetID, source).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest %s timestamp: %w", dataType, err)
	}
	return &ts, nil
}

// ResampleOHLCV aggregates fine-grained candles into a coarser interval for
// one source. The aggregation runs entirely in the database.
func (r *MarketDataRepository) ResampleOHLCV(ctx context.Context, source, fromInterval, toInterval string, bucket time.Duration) (int64, error) {
	seconds := int64(bucket.Seconds())
	if seconds <= 0 {
		return 0, fmt.Errorf("invalid resample bucket: %s", bucket)
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO ohlcv (asset_id, source, interval, open, high, low, close, volume, timestamp)
		SELECT
			asset_id,
			source,
			$3,
			(array_agg(open ORDER BY timestamp ASC))[1],
			MAX(high),
			MIN(low),
			(array_agg(close ORDER BY timestamp DESC))[1],
			SUM(volume),
			to_timestamp(floor(extract(epoch FROM timestamp) / $4) * $4)
		FROM ohlcv
		WHERE source = $1 AND interval = $2
		GROUP BY asset_id, source, to_timestamp(floor(extract(epoch FROM timestamp) / $4) * $4)
		ON CONFLICT (asset_id, source, interval, timestamp)
		DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume`,
		source, fromInterval, toInterval, seconds)
	if err != nil {
		return 0, fmt.Errorf("failed to resample ohlcv for %s: %w", source, err)
	}
	return tag.RowsAffected(), nil
}

func (r *MarketDataRepository) drainBatch(ctx context.Context, batch *pgx.Batch, n int, what string) (int64, error) {
	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	var affected int64
	for i := 0; i < n; i++ {
		tag, err := results.Exec()
		if err != nil {
			return affected, fmt.Errorf("failed to upsert %s: %w", what, err)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}
