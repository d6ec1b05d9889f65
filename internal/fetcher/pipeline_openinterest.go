package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/coinlens/coinlens-go/internal/models"
	"github.com/coinlens/coinlens-go/pkg/platform"
)

// OpenInterestPipeline collects open interest for one source. Sources
// whose API only exposes a current snapshot skip the historical stage on
// initial runs; incremental runs sample the snapshot instead, building a
// series over time.
type OpenInterestPipeline struct {
	run *PipelineContext
}

// NewOpenInterestPipeline creates an open interest pipeline.
func NewOpenInterestPipeline(run *PipelineContext) *OpenInterestPipeline {
	return &OpenInterestPipeline{run: run}
}

func (p *OpenInterestPipeline) DataType() models.DataType {
	return models.DataTypeOpenInterest
}

func (p *OpenInterestPipeline) Stages(symbolCount int) []StageInit {
	return []StageInit{
		{Key: StageOIFetch, Label: "Fetching open interest", Total: symbolCount},
		{Key: StageOIStore, Label: "Storing open interest", Total: symbolCount},
	}
}

func (p *OpenInterestPipeline) ShouldSkip() (bool, string) {
	if !p.run.Client.Capabilities().SupportsOpenInterest {
		return true, SkipUnsupported
	}
	if p.run.Policy.SnapshotOnlyOI && !p.run.Incremental {
		return true, SkipSnapshotOnly
	}
	return false, ""
}

func (p *OpenInterestPipeline) Execute(ctx context.Context, symbols []string) (int64, error) {
	if skip, message := p.ShouldSkip(); skip {
		p.run.Tracker.SkipStages(message, StageOIFetch, StageOIStore)
		return 0, nil
	}

	progress := newStageProgress(p.run.Tracker, StageOIFetch, StageOIStore, len(symbols))
	p.run.Tracker.Emit(EventProgress, StageOIFetch, "Fetching open interest")

	var stored atomic.Int64
	RunBounded(ctx, symbols, p.run.Policy.Concurrency, p.run.Policy.Delay(), func(ctx context.Context, symbol string, _ int) {
		n, err := p.processSymbol(ctx, symbol, progress)
		if err != nil {
			p.run.recordSymbolError(models.DataTypeOpenInterest, symbol, err)
		}
		stored.Add(n)
	})

	progress.finish()
	p.run.Tracker.AddRecords(models.DataTypeOpenInterest, stored.Load())
	p.run.Tracker.Emit(EventProgress, StageOIStore, "Open interest stored")
	return stored.Load(), nil
}

func (p *OpenInterestPipeline) processSymbol(ctx context.Context, symbol string, progress *stageProgress) (int64, error) {
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

	records, err := p.fetchRecords(ctx, assetID, symbol)
	progress.fetchAdvanced()
	if err != nil {
		progress.storeAdvanced()
		return 0, fmt.Errorf("fetch: %w", err)
	}

	interval := p.run.Policy.OIInterval
	rows := make([]models.OpenInterest, 0, len(records))
	for _, record := range records {
		rows = append(rows, models.OpenInterest{
			AssetID:           assetID,
			Source:            p.run.Source,
			Interval:          interval,
			OpenInterest:      record.OpenInterest,
			OpenInterestValue: record.OpenInterestValue,
			Timestamp:         record.Timestamp,
		})
	}

	n, err := p.run.Store.BulkUpsertOpenInterest(ctx, rows)
	progress.storeAdvanced()
	if err != nil {
		return n, fmt.Errorf("store: %w", err)
	}
	return n, nil
}

func (p *OpenInterestPipeline) fetchRecords(ctx context.Context, assetID int64, symbol string) ([]platform.OpenInterestRecord, error) {
	if p.run.Policy.SnapshotOnlyOI {
		record, err := p.run.Client.GetOpenInterestSnapshot(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return []platform.OpenInterestRecord{*record}, nil
	}

	since := p.run.sinceFor(ctx, assetID, models.DataTypeOpenInterest)
	return p.run.Client.GetOpenInterest(ctx, symbol, p.run.Policy.OIInterval, since, p.run.Policy.PageLimit)
}
