package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/coinlens/coinlens-go/internal/models"
)

// LiquidationPipeline collects liquidation events for sources that expose
// them.
type LiquidationPipeline struct {
	run *PipelineContext
}

// NewLiquidationPipeline creates a liquidation pipeline.
func NewLiquidationPipeline(run *PipelineContext) *LiquidationPipeline {
	return &LiquidationPipeline{run: run}
}

func (p *LiquidationPipeline) DataType() models.DataType {
	return models.DataTypeLiquidation
}

func (p *LiquidationPipeline) Stages(symbolCount int) []StageInit {
	return []StageInit{
		{Key: StageLiquidationFetch, Label: "Fetching liquidations", Total: symbolCount},
		{Key: StageLiquidationStore, Label: "Storing liquidations", Total: symbolCount},
	}
}

func (p *LiquidationPipeline) ShouldSkip() (bool, string) {
	if !p.run.Client.Capabilities().SupportsLiquidations {
		return true, SkipUnsupported
	}
	return false, ""
}

func (p *LiquidationPipeline) Execute(ctx context.Context, symbols []string) (int64, error) {
	if skip, message := p.ShouldSkip(); skip {
		p.run.Tracker.SkipStages(message, StageLiquidationFetch, StageLiquidationStore)
		return 0, nil
	}

	progress := newStageProgress(p.run.Tracker, StageLiquidationFetch, StageLiquidationStore, len(symbols))
	p.run.Tracker.Emit(EventProgress, StageLiquidationFetch, "Fetching liquidations")

	var stored atomic.Int64
	RunBounded(ctx, symbols, p.run.Policy.Concurrency, p.run.Policy.Delay(), func(ctx context.Context, symbol string, _ int) {
		n, err := p.processSymbol(ctx, symbol, progress)
		if err != nil {
			p.run.recordSymbolError(models.DataTypeLiquidation, symbol, err)
		}
		stored.Add(n)
	})

	progress.finish()
	p.run.Tracker.AddRecords(models.DataTypeLiquidation, stored.Load())
	p.run.Tracker.Emit(EventProgress, StageLiquidationStore, "Liquidations stored")
	return stored.Load(), nil
}

func (p *LiquidationPipeline) processSymbol(ctx context.Context, symbol string, progress *stageProgress) (int64, error) {
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

	since := p.run.sinceFor(ctx, assetID, models.DataTypeLiquidation)
	records, err := p.run.Client.GetLiquidations(ctx, symbol, since, p.run.Policy.PageLimit)
	progress.fetchAdvanced()
	if err != nil {
		progress.storeAdvanced()
		return 0, fmt.Errorf("fetch: %w", err)
	}

	rows := make([]models.Liquidation, 0, len(records))
	for _, record := range records {
		rows = append(rows, models.Liquidation{
			AssetID:   assetID,
			Source:    p.run.Source,
			Side:      record.Side,
			Price:     record.Price,
			Quantity:  record.Quantity,
			Timestamp: record.Timestamp,
		})
	}

	n, err := p.run.Store.BulkUpsertLiquidations(ctx, rows)
	progress.storeAdvanced()
	if err != nil {
		return n, fmt.Errorf("store: %w", err)
	}
	return n, nil
}
