package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coinlens/coinlens-go/internal/config"
	"github.com/coinlens/coinlens-go/internal/models"
	"github.com/coinlens/coinlens-go/pkg/platform"
)

// Stage keys, in run order.
const (
	StageDiscovery        = "discovery"
	StageFundingFetch     = "fundingFetch"
	StageFundingStore     = "fundingStore"
	StageOHLCVFetch       = "ohlcvFetch"
	StageOHLCVStore       = "ohlcvStore"
	StageOIFetch          = "oiFetch"
	StageOIStore          = "oiStore"
	StageLSRatioFetch     = "lsRatioFetch"
	StageLSRatioStore     = "lsRatioStore"
	StageLiquidationFetch = "liquidationFetch"
	StageLiquidationStore = "liquidationStore"
	StageResample         = "resample"
)

// Skip messages surfaced in stage snapshots.
const (
	SkipUnsupported  = "Skipped (not supported by platform)"
	SkipSnapshotOnly = "Skipped (snapshot-only platform)"
)

// Storage is the persistence collaborator consumed by strategies and
// pipelines. The fetch core never issues raw queries itself.
type Storage interface {
	FindAssetBySymbol(ctx context.Context, symbol, source string) (int64, error)
	BulkUpsertAssets(ctx context.Context, assets []models.Asset) (int64, error)
	ListActiveAssets(ctx context.Context, source string) ([]models.Asset, error)

	BulkUpsertFundingRates(ctx context.Context, rates []models.FundingRate) (int64, error)
	BulkUpsertOHLCV(ctx context.Context, candles []models.OHLCV) (int64, error)
	BulkUpsertOpenInterest(ctx context.Context, records []models.OpenInterest) (int64, error)
	BulkUpsertLongShortRatios(ctx context.Context, ratios []models.LongShortRatio) (int64, error)
	BulkUpsertLiquidations(ctx context.Context, liquidations []models.Liquidation) (int64, error)

	FindLatestTimestamp(ctx context.Context, assetID int64, source string, dataType models.DataType) (*time.Time, error)
	ResampleOHLCV(ctx context.Context, source, fromInterval, toInterval string, bucket time.Duration) (int64, error)
}

// PipelineContext bundles everything a pipeline needs for one run: the
// source policy, the shared rate limiter, the shared tracker and the
// collaborators. Pipelines must use the context's limiter, never a
// private one, so the aggregate call rate stays bounded.
type PipelineContext struct {
	Source  string
	Policy  config.PlatformPolicy
	Client  platform.PlatformClient
	Store   Storage
	Limiter *RateLimiter
	Tracker *ProgressTracker

	// Incremental restricts fetches to data newer than the latest stored
	// timestamp per asset.
	Incremental bool
}

// Pipeline is the fetch+store unit for one data type and one source.
type Pipeline interface {
	// DataType identifies the series this pipeline collects.
	DataType() models.DataType
	// Stages returns the pipeline's fetch and store stage declarations,
	// sized for the given symbol count.
	Stages(symbolCount int) []StageInit
	// ShouldSkip reports whether the source cannot serve this data type,
	// with the message to surface on the skipped stages.
	ShouldSkip() (bool, string)
	// Execute fetches and stores per-symbol data, returning the number
	// of stored records. Per-symbol failures are recorded on the tracker
	// and never abort the batch.
	Execute(ctx context.Context, symbols []string) (int64, error)
}

// stageProgress tracks completion counts for one pipeline's fetch and
// store stages across worker lanes.
type stageProgress struct {
	tracker   *ProgressTracker
	fetchKey  string
	storeKey  string
	fetchDone atomic.Int64
	storeDone atomic.Int64
}

func newStageProgress(tracker *ProgressTracker, fetchKey, storeKey string, total int) *stageProgress {
	active := StageActive
	tracker.UpdateStage(fetchKey, StageUpdate{Total: &total, Status: &active})
	tracker.UpdateStage(storeKey, StageUpdate{Total: &total, Status: &active})
	return &stageProgress{tracker: tracker, fetchKey: fetchKey, storeKey: storeKey}
}

// fetchAdvanced marks one symbol's fetch as done, successful or not.
func (p *stageProgress) fetchAdvanced() {
	done := int(p.fetchDone.Add(1))
	p.tracker.UpdateStage(p.fetchKey, StageUpdate{Completed: &done})
}

// storeAdvanced marks one symbol's store as done, successful or not.
func (p *stageProgress) storeAdvanced() {
	done := int(p.storeDone.Add(1))
	p.tracker.UpdateStage(p.storeKey, StageUpdate{Completed: &done})
}

// finish marks both stages complete.
func (p *stageProgress) finish() {
	p.tracker.MarkStageComplete(p.fetchKey, "")
	p.tracker.MarkStageComplete(p.storeKey, "")
}

// sinceFor returns the incremental fetch cursor for an asset, or nil for
// a full-history fetch. A cursor lookup failure degrades to full history
// rather than failing the symbol.
func (c *PipelineContext) sinceFor(ctx context.Context, assetID int64, dataType models.DataType) *time.Time {
	if !c.Incremental {
		return nil
	}
	since, err := c.Store.FindLatestTimestamp(ctx, assetID, c.Source, dataType)
	if err != nil {
		return nil
	}
	return since
}

// recordSymbolError accumulates a per-symbol failure on the tracker.
func (c *PipelineContext) recordSymbolError(dataType models.DataType, symbol string, err error) {
	c.Tracker.AddError(fmt.Sprintf("%s %s %s: %v", c.Source, dataType, symbol, err))
}
