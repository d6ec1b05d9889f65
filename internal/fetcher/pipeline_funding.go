package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/coinlens/coinlens-go/internal/models"
)

// FundingPipeline collects funding rate history for one source.
type FundingPipeline struct {
	run *PipelineContext
}

// NewFundingPipeline creates a funding rate pipeline.
func NewFundingPipeline(run *PipelineContext) *FundingPipeline {
	return &FundingPipeline{run: run}
}

func (p *FundingPipeline) DataType() models.DataType {
	return models.DataTypeFunding
}

func (p *FundingPipeline) Stages(symbolCount int) []StageInit {
	return []StageInit{
		{Key: StageFundingFetch, Label: "Fetching funding rates", Total: symbolCount},
		{Key: StageFundingStore, Label: "Storing funding rates", Total: symbolCount},
	}
}

func (p *FundingPipeline) ShouldSkip() (bool, string) {
	if !p.run.Client.Capabilities().SupportsFunding {
		return true, SkipUnsupported
	}
	return false, ""
}

func (p *FundingPipeline) Execute(ctx context.Context, symbols []string) (int64, error) {
	if skip, message := p.ShouldSkip(); skip {
		p.run.Tracker.SkipStages(message, StageFundingFetch, StageFundingStore)
		return 0, nil
	}

	progress := newStageProgress(p.run.Tracker, StageFundingFetch, StageFundingStore, len(symbols))
	p.run.Tracker.Emit(EventProgress, StageFundingFetch, "Fetching funding rates")

	var stored atomic.Int64
	RunBounded(ctx, symbols, p.run.Policy.Concurrency, p.run.Policy.Delay(), func(ctx context.Context, symbol string, _ int) {
		n, err := p.processSymbol(ctx, symbol, progress)
		if err != nil {
			p.run.recordSymbolError(models.DataTypeFunding, symbol, err)
		}
		stored.Add(n)
	})

	progress.finish()
	p.run.Tracker.AddRecords(models.DataTypeFunding, stored.Load())
	p.run.Tracker.Emit(EventProgress, StageFundingStore, "Funding rates stored")
	return stored.Load(), nil
}

// processSymbol fetches and stores one symbol's funding rates. Both
// stages advance whether the symbol succeeds or fails, so the batch
// always reaches 100%.
func (p *FundingPipeline) processSymbol(ctx context.Context, symbol string, progress *stageProgress) (int64, error) {
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

	since := p.run.sinceFor(ctx, assetID, models.DataTypeFunding)
	records, err := p.run.Client.GetFundingRates(ctx, symbol, since, p.run.Policy.PageLimit)
	progress.fetchAdvanced()
	if err != nil {
		progress.storeAdvanced()
		return 0, fmt.Errorf("fetch: %w", err)
	}

	rows := make([]models.FundingRate, 0, len(records))
	for _, record := range records {
		rows = append(rows, models.FundingRate{
			AssetID:         assetID,
			Source:          p.run.Source,
			Rate:            record.Rate,
			FundingTime:     record.FundingTime,
			NextFundingTime: record.NextFundingTime,
			MarkPrice:       record.MarkPrice,
			Timestamp:       record.Timestamp,
		})
	}

	n, err := p.run.Store.BulkUpsertFundingRates(ctx, rows)
	progress.storeAdvanced()
	if err != nil {
		return n, fmt.Errorf("store: %w", err)
	}
	return n, nil
}
