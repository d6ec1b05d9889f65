package platform

import (
	"context"
	"time"
)

// PlatformClient defines the interface for fetching market data from one
// source. The exchange-specific request and response translation lives
// behind the gateway service; this interface only speaks normalized
// records.
type PlatformClient interface {
	// Source returns the source id this client is bound to.
	Source() string

	// Capabilities reports which data series the source exposes. Resolved
	// from the gateway; a probe that failed at boot is retried lazily.
	Capabilities() Capabilities

	// GetAssets returns the current asset universe of the source.
	GetAssets(ctx context.Context) ([]AssetDescriptor, error)

	// Data series operations. All are per-symbol; since restricts the
	// window for incremental fetches and may be nil for full history.
	GetFundingRates(ctx context.Context, symbol string, since *time.Time, limit int) ([]FundingRateRecord, error)
	GetOHLCV(ctx context.Context, symbol, interval string, since *time.Time, limit int) ([]CandleRecord, error)
	GetOpenInterest(ctx context.Context, symbol, interval string, since *time.Time, limit int) ([]OpenInterestRecord, error)
	GetLongShortRatio(ctx context.Context, symbol, interval string, since *time.Time, limit int) ([]LongShortRatioRecord, error)
	GetLiquidations(ctx context.Context, symbol string, since *time.Time, limit int) ([]LiquidationRecord, error)

	// GetOpenInterestSnapshot returns the current open interest value for
	// sources that expose no historical series.
	GetOpenInterestSnapshot(ctx context.Context, symbol string) (*OpenInterestRecord, error)
}

// Ensure our implementation satisfies the interface
var _ PlatformClient = (*Client)(nil)
