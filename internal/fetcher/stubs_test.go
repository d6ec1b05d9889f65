package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinlens/coinlens-go/internal/config"
	"github.com/coinlens/coinlens-go/internal/models"
	"github.com/coinlens/coinlens-go/pkg/platform"
)

// memoryStore is an in-memory Storage used by the strategy and pipeline
// tests. Bulk upserts only count rows; the tests assert on counts, not
// row contents.
type memoryStore struct {
	mu       sync.Mutex
	nextID   int64
	assetIDs map[string]int64
	active   []models.Asset

	stored map[models.DataType]int64
	latest map[string]time.Time

	listErr        error
	upsertAssetErr error
	upsertErr      map[models.DataType]error

	resampled     int64
	resampleErr   error
	resampleCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		assetIDs: make(map[string]int64),
		stored:   make(map[models.DataType]int64),
		latest:   make(map[string]time.Time),
	}
}

func (s *memoryStore) seedAssets(source string, symbols ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, symbol := range symbols {
		s.nextID++
		s.assetIDs[symbol] = s.nextID
		s.active = append(s.active, models.Asset{
			ID:       s.nextID,
			Source:   source,
			Symbol:   symbol,
			IsActive: true,
		})
	}
}

func (s *memoryStore) storedCount(dataType models.DataType) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored[dataType]
}

func (s *memoryStore) FindAssetBySymbol(_ context.Context, symbol, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.assetIDs[symbol]
	if !ok {
		return 0, fmt.Errorf("asset %s not found", symbol)
	}
	return id, nil
}

func (s *memoryStore) BulkUpsertAssets(_ context.Context, assets []models.Asset) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertAssetErr != nil {
		return 0, s.upsertAssetErr
	}
	for _, asset := range assets {
		if _, ok := s.assetIDs[asset.Symbol]; ok {
			continue
		}
		s.nextID++
		asset.ID = s.nextID
		s.assetIDs[asset.Symbol] = asset.ID
		s.active = append(s.active, asset)
	}
	return int64(len(assets)), nil
}

func (s *memoryStore) ListActiveAssets(_ context.Context, _ string) ([]models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Asset, len(s.active))
	copy(out, s.active)
	return out, nil
}

func (s *memoryStore) bulkUpsert(dataType models.DataType, n int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.upsertErr[dataType]; err != nil {
		return 0, err
	}
	s.stored[dataType] += int64(n)
	return int64(n), nil
}

func (s *memoryStore) BulkUpsertFundingRates(_ context.Context, rates []models.FundingRate) (int64, error) {
	return s.bulkUpsert(models.DataTypeFunding, len(rates))
}

func (s *memoryStore) BulkUpsertOHLCV(_ context.Context, candles []models.OHLCV) (int64, error) {
	return s.bulkUpsert(models.DataTypeOHLCV, len(candles))
}

func (s *memoryStore) BulkUpsertOpenInterest(_ context.Context, records []models.OpenInterest) (int64, error) {
	return s.bulkUpsert(models.DataTypeOpenInterest, len(records))
}

func (s *memoryStore) BulkUpsertLongShortRatios(_ context.Context, ratios []models.LongShortRatio) (int64, error) {
	return s.bulkUpsert(models.DataTypeLongShortRatio, len(ratios))
}

func (s *memoryStore) BulkUpsertLiquidations(_ context.Context, liquidations []models.Liquidation) (int64, error) {
	return s.bulkUpsert(models.DataTypeLiquidation, len(liquidations))
}

func (s *memoryStore) FindLatestTimestamp(_ context.Context, assetID int64, _ string, dataType models.DataType) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.latest[fmt.Sprintf("%d|%s", assetID, dataType)]
	if !ok {
		return nil, nil
	}
	return &ts, nil
}

func (s *memoryStore) ResampleOHLCV(_ context.Context, _, _, _ string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resampleCalls++
	return s.resampled, s.resampleErr
}

// stubClient is a canned PlatformClient. Per-symbol errors apply to every
// data series.
type stubClient struct {
	source string
	caps   platform.Capabilities

	assets    []platform.AssetDescriptor
	assetsErr error

	perSymbolErr map[string]error

	fundingPerSymbol int
	candlesPerSymbol int
	oiPerSymbol      int
	lsPerSymbol      int
	liqPerSymbol     int

	mu             sync.Mutex
	snapshotCalls  int
	oiHistoryCalls int
}

func (c *stubClient) Source() string                      { return c.source }
func (c *stubClient) Capabilities() platform.Capabilities { return c.caps }

func (c *stubClient) GetAssets(_ context.Context) ([]platform.AssetDescriptor, error) {
	if c.assetsErr != nil {
		return nil, c.assetsErr
	}
	return c.assets, nil
}

func (c *stubClient) symbolErr(symbol string) error {
	return c.perSymbolErr[symbol]
}

func (c *stubClient) GetFundingRates(_ context.Context, symbol string, _ *time.Time, _ int) ([]platform.FundingRateRecord, error) {
	if err := c.symbolErr(symbol); err != nil {
		return nil, err
	}
	records := make([]platform.FundingRateRecord, c.fundingPerSymbol)
	for i := range records {
		records[i] = platform.FundingRateRecord{
			Symbol:      symbol,
			Rate:        decimal.NewFromFloat(0.0001),
			FundingTime: time.Now().UTC(),
			Timestamp:   time.Now().UTC(),
		}
	}
	return records, nil
}

func (c *stubClient) GetOHLCV(_ context.Context, symbol, _ string, _ *time.Time, _ int) ([]platform.CandleRecord, error) {
	if err := c.symbolErr(symbol); err != nil {
		return nil, err
	}
	records := make([]platform.CandleRecord, c.candlesPerSymbol)
	for i := range records {
		records[i] = platform.CandleRecord{
			Symbol:    symbol,
			Open:      decimal.NewFromInt(100),
			High:      decimal.NewFromInt(110),
			Low:       decimal.NewFromInt(90),
			Close:     decimal.NewFromInt(105),
			Volume:    decimal.NewFromInt(1000),
			Timestamp: time.Now().UTC(),
		}
	}
	return records, nil
}

func (c *stubClient) GetOpenInterest(_ context.Context, symbol, _ string, _ *time.Time, _ int) ([]platform.OpenInterestRecord, error) {
	c.mu.Lock()
	c.oiHistoryCalls++
	c.mu.Unlock()
	if err := c.symbolErr(symbol); err != nil {
		return nil, err
	}
	records := make([]platform.OpenInterestRecord, c.oiPerSymbol)
	for i := range records {
		records[i] = platform.OpenInterestRecord{
			Symbol:       symbol,
			OpenInterest: decimal.NewFromInt(5000),
			Timestamp:    time.Now().UTC(),
		}
	}
	return records, nil
}

func (c *stubClient) GetLongShortRatio(_ context.Context, symbol, _ string, _ *time.Time, _ int) ([]platform.LongShortRatioRecord, error) {
	if err := c.symbolErr(symbol); err != nil {
		return nil, err
	}
	records := make([]platform.LongShortRatioRecord, c.lsPerSymbol)
	for i := range records {
		records[i] = platform.LongShortRatioRecord{
			Symbol:    symbol,
			Ratio:     decimal.NewFromFloat(1.2),
			Timestamp: time.Now().UTC(),
		}
	}
	return records, nil
}

func (c *stubClient) GetLiquidations(_ context.Context, symbol string, _ *time.Time, _ int) ([]platform.LiquidationRecord, error) {
	if err := c.symbolErr(symbol); err != nil {
		return nil, err
	}
	records := make([]platform.LiquidationRecord, c.liqPerSymbol)
	for i := range records {
		records[i] = platform.LiquidationRecord{
			Symbol:    symbol,
			Side:      "long",
			Price:     decimal.NewFromInt(100),
			Quantity:  decimal.NewFromInt(2),
			Timestamp: time.Now().UTC(),
		}
	}
	return records, nil
}

func (c *stubClient) GetOpenInterestSnapshot(_ context.Context, symbol string) (*platform.OpenInterestRecord, error) {
	c.mu.Lock()
	c.snapshotCalls++
	c.mu.Unlock()
	if err := c.symbolErr(symbol); err != nil {
		return nil, err
	}
	return &platform.OpenInterestRecord{
		Symbol:       symbol,
		OpenInterest: decimal.NewFromInt(5000),
		Timestamp:    time.Now().UTC(),
	}, nil
}

func newTestRun(source string, client platform.PlatformClient, store Storage, policy config.PlatformPolicy) *PipelineContext {
	return &PipelineContext{
		Source:  source,
		Policy:  policy,
		Client:  client,
		Store:   store,
		Limiter: NewRateLimiter(source, 1000, time.Second),
		Tracker: NewProgressTracker(source),
	}
}
