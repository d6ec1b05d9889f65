package database

import (
	"context"
	"time"

	"github.com/coinlens/coinlens-go/internal/models"
)

// Store bundles the repositories behind the storage contract the fetch
// core consumes. Method names follow the fetcher.Storage interface.
type Store struct {
	Assets  *AssetRepository
	Market  *MarketDataRepository
	Unified *UnifiedAssetRepository
}

// NewStore creates a store over one database pool.
func NewStore(pool DatabasePool) *Store {
	return &Store{
		Assets:  NewAssetRepository(pool),
		Market:  NewMarketDataRepository(pool),
		Unified: NewUnifiedAssetRepository(pool),
	}
}

// FindAssetBySymbol resolves a (symbol, source) pair to an asset id.
func (s *Store) FindAssetBySymbol(ctx context.Context, symbol, source string) (int64, error) {
	return s.Assets.FindBySymbol(ctx, symbol, source)
}

// BulkUpsertAssets upserts discovered assets.
func (s *Store) BulkUpsertAssets(ctx context.Context, assets []models.Asset) (int64, error) {
	return s.Assets.BulkUpsertAssets(ctx, assets)
}

// ListActiveAssets returns the active assets of one source.
func (s *Store) ListActiveAssets(ctx context.Context, source string) ([]models.Asset, error) {
	return s.Assets.ListActiveBySource(ctx, source)
}

// BulkUpsertFundingRates stores funding rate rows.
func (s *Store) BulkUpsertFundingRates(ctx context.Context, rates []models.FundingRate) (int64, error) {
	return s.Market.BulkUpsertFundingRates(ctx, rates)
}

// BulkUpsertOHLCV stores candles.
func (s *Store) BulkUpsertOHLCV(ctx context.Context, candles []models.OHLCV) (int64, error) {
	return s.Market.BulkUpsertOHLCV(ctx, candles)
}

// BulkUpsertOpenInterest stores open interest rows.
func (s *Store) BulkUpsertOpenInterest(ctx context.Context, records []models.OpenInterest) (int64, error) {
	return s.Market.BulkUpsertOpenInterest(ctx, records)
}

// BulkUpsertLongShortRatios stores long/short ratio rows.
func (s *Store) BulkUpsertLongShortRatios(ctx context.Context, ratios []models.LongShortRatio) (int64, error) {
	return s.Market.BulkUpsertLongShortRatios(ctx, ratios)
}

// BulkUpsertLiquidations stores liquidation rows.
func (s *Store) BulkUpsertLiquidations(ctx context.Context, liquidations []models.Liquidation) (int64, error) {
	return s.Market.BulkUpsertLiquidations(ctx, liquidations)
}

// FindLatestTimestamp returns the newest stored timestamp for an
// asset/data type, or nil.
func (s *Store) FindLatestTimestamp(ctx context.Context, assetID int64, source string, dataType models.DataType) (*time.Time, error) {
	return s.Market.FindLatestTimestamp(ctx, assetID, source, dataType)
}

// ResampleOHLCV aggregates candles into a coarser interval.
func (s *Store) ResampleOHLCV(ctx context.Context, source, fromInterval, toInterval string, bucket time.Duration) (int64, error) {
	return s.Market.ResampleOHLCV(ctx, source, fromInterval, toInterval, bucket)
}
