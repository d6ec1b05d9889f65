package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/coinlens/coinlens-go/internal/models"
)

// LongShortRatioPipeline collects account long/short ratios for sources
// that expose them.
type LongShortRatioPipeline struct {
	run *PipelineContext
}

// NewLongShortRatioPipeline creates a long/short ratio pipeline.
func NewLongShortRatioPipeline(run *PipelineContext) *LongShortRatioPipeline {
	return &LongShortRatioPipeline{run: run}
}

func (p *LongShortRatioPipeline) DataType() models.DataType {
	return models.DataTypeLongShortRatio
}

func (p *LongShortRatioPipeline) Stages(symbolCount int) []StageInit {
	return []StageInit{
		{Key: StageLSRatioFetch, Label: "Fetching long/short ratios", Total: symbolCount},
		{Key: StageLSRatioStore, Label: "Storing long/short ratios", Total: symbolCount},
	}
}

func (p *LongShortRatioPipeline) ShouldSkip() (bool, string) {
	if !p.run.Client.Capabilities().SupportsLongShortRatio {
		return true, SkipUnsupported
	}
	return false, ""
}

func (p *LongShortRatioPipeline) Execute(ctx context.Context, symbols []string) (int64, error) {
	if skip, message := p.ShouldSkip(); skip {
		p.run.Tracker.SkipStages(message, StageLSRatioFetch, StageLSRatioStore)
		return 0, nil
	}

	progress := newStageProgress(p.run.Tracker, StageLSRatioFetch, StageLSRatioStore, len(symbols))
	p.run.Tracker.Emit(EventProgress, StageLSRatioFetch, "Fetching long/short ratios")

	var stored atomic.Int64
	RunBounded(ctx, symbols, p.run.Policy.Concurrency, p.run.Policy.Delay(), func(ctx context.Context, symbol string, _ int) {
		n, err := p.processSymbol(ctx, symbol, progress)
		if err != nil {
			p.run.recordSymbolError(models.DataTypeLongShortRatio, symbol, err)
		}
		stored.Add(n)
	})

	progress.finish()
	p.run.Tracker.AddRecords(models.DataTypeLongShortRatio, stored.Load())
	p.run.Tracker.Emit(EventProgress, StageLSRatioStore, "Long/short ratios stored")
	return stored.Load(), nil
}

func (p *LongShortRatioPipeline) processSymbol(ctx context.Context, symbol string, progress *stageProgress) (int64, error) {
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

	interval := p.run.Policy.LSRatioInterval
	since := p.run.sinceFor(ctx, assetID, models.DataTypeLongShortRatio)
	records, err := p.run.Client.GetLongShortRatio(ctx, symbol, interval, since, p.run.Policy.PageLimit)
	progress.fetchAdvanced()
	if err != nil {
		progress.storeAdvanced()
		return 0, fmt.Errorf("fetch: %w", err)
	}

	rows := make([]models.LongShortRatio, 0, len(records))
	for _, record := range records {
		rows = append(rows, models.LongShortRatio{
			AssetID:      assetID,
			Source:       p.run.Source,
			Interval:     interval,
			LongAccount:  record.LongAccount,
			ShortAccount: record.ShortAccount,
			Ratio:        record.Ratio,
			Timestamp:    record.Timestamp,
		})
	}

	n, err := p.run.Store.BulkUpsertLongShortRatios(ctx, rows)
	progress.storeAdvanced()
	if err != nil {
		return n, fmt.Errorf("store: %w", err)
	}
	return n, nil
}
