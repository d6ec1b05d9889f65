package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/coinlens/coinlens-go/internal/models"
)

// OHLCVPipeline collects candles for one source at the policy's interval.
type OHLCVPipeline struct {
	run *PipelineContext
}

// NewOHLCVPipeline creates an OHLCV pipeline.
func NewOHLCVPipeline(run *PipelineContext) *OHLCVPipeline {
	return &OHLCVPipeline{run: run}
}

func (p *OHLCVPipeline) DataType() models.DataType {
	return models.DataTypeOHLCV
}

func (p *OHLCVPipeline) Stages(symbolCount int) []StageInit {
	return []StageInit{
		{Key: StageOHLCVFetch, Label: "Fetching candles", Total: symbolCount},
		{Key: StageOHLCVStore, Label: "Storing candles", Total: symbolCount},
	}
}

func (p *OHLCVPipeline) ShouldSkip() (bool, string) {
	if !p.run.Client.Capabilities().SupportsOHLCV {
		return true, SkipUnsupported
	}
	return false, ""
}

func (p *OHLCVPipeline) Execute(ctx context.Context, symbols []string) (int64, error) {
	if skip, message := p.ShouldSkip(); skip {
		p.run.Tracker.SkipStages(message, StageOHLCVFetch, StageOHLCVStore)
		return 0, nil
	}

	progress := newStageProgress(p.run.Tracker, StageOHLCVFetch, StageOHLCVStore, len(symbols))
	p.run.Tracker.Emit(EventProgress, StageOHLCVFetch, "Fetching candles")

	var stored atomic.Int64
	RunBounded(ctx, symbols, p.run.Policy.Concurrency, p.run.Policy.Delay(), func(ctx context.Context, symbol string, _ int) {
		n, err := p.processSymbol(ctx, symbol, progress)
		if err != nil {
			p.run.recordSymbolError(models.DataTypeOHLCV, symbol, err)
		}
		stored.Add(n)
	})

	progress.finish()
	p.run.Tracker.AddRecords(models.DataTypeOHLCV, stored.Load())
	p.run.Tracker.Emit(EventProgress, StageOHLCVStore, "Candles stored")
	return stored.Load(), nil
}

func (p *OHLCVPipeline) processSymbol(ctx context.Context, symbol string, progress *stageProgress) (int64, error) {
	assetID, err := p.run.Store.FindAssetBySymbol(ctx, symbol, p.run.Source)
	if err != nil {
		progress.fetchAdvanced()
		progress.storeAdvanced()
		return 0, fmt.Errorf("resolve asset: %w", err)
	}

	if err := p.run.Limiter.Acquire(ctx, 1); err != nil {
		progress.fetchAdvanced()
		progress.storeAdvanced()
		return 0, err
	}

	interval := p.run.Policy.OHLCVInterval
	since := p.run.sinceFor(ctx, assetID, models.DataTypeOHLCV)
	records, err := p.run.Client.GetOHLCV(ctx, symbol, interval, since, p.run.Policy.PageLimit)
	progress.fetchAdvanced()
	if err != nil {
		progress.storeAdvanced()
		return 0, fmt.Errorf("fetch: %w", err)
	}

	rows := make([]models.OHLCV, 0, len(records))
	for _, record := range records {
		rows = append(rows, models.OHLCV{
			AssetID:   assetID,
			Source:    p.run.Source,
			Interval:  interval,
			Open:      record.Open,
			High:      record.High,
			Low:       record.Low,
			Close:     record.Close,
			Volume:    record.Volume,
			Timestamp: record.Timestamp,
		})
	}

	n, err := p.run.Store.BulkUpsertOHLCV(ctx, rows)
	progress.storeAdvanced()
	if err != nil {
		return n, fmt.Errorf("store: %w", err)
	}
	return n, nil
}
