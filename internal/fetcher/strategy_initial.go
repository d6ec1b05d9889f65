package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/coinlens/coinlens-go/internal/models"
)

// resampleTarget is the coarse interval fine-grained candles are rolled
// up into after an initial backfill.
const resampleTarget = "1h"

// InitialStrategy performs a full run for one source: asset discovery,
// historical backfill through every supported pipeline, then a candle
// resampling pass.
type InitialStrategy struct {
	run *PipelineContext
}

// NewInitialStrategy creates an initial fetch strategy for the run.
func NewInitialStrategy(run *PipelineContext) *InitialStrategy {
	run.Incremental = false
	return &InitialStrategy{run: run}
}

// Execute runs discovery and all pipelines, returning an aggregate
// result. A discovery failure is fatal for the run and surfaces as the
// sole error of a zero-count result; everything downstream is isolated.
func (s *InitialStrategy) Execute(ctx context.Context) (*FetchResult, error) {
	startedAt := time.Now().UTC()
	tracker := s.run.Tracker

	tracker.InitStages("initial", []StageInit{
		{Key: StageDiscovery, Label: "Discovering assets", Total: 1},
	})
	tracker.Emit(EventStart, StageDiscovery, "Starting initial fetch for "+s.run.Source)

	symbols, err := s.discoverAssets(ctx)
	if err != nil {
		discoveryErr := fmt.Errorf("asset discovery for %s failed: %w", s.run.Source, err)
		tracker.AddError(discoveryErr.Error())
		tracker.Emit(EventError, StageDiscovery, discoveryErr.Error())
		return buildResult(s.run, 0, startedAt), discoveryErr
	}

	pipelines := buildPipelines(s.run)

	inits := []StageInit{{Key: StageDiscovery, Label: "Discovering assets", Total: 1}}
	inits = append(inits, pipelineStages(s.run, pipelines, len(symbols))...)
	if s.needsResample() {
		inits = append(inits, StageInit{Key: StageResample, Label: "Resampling candles", Total: 1})
	}
	tracker.InitStages("initial", inits)

	one := 1
	complete := StageComplete
	tracker.UpdateStage(StageDiscovery, StageUpdate{
		Completed: &one,
		Status:    &complete,
		Message:   fmt.Sprintf("Discovered %d assets", len(symbols)),
	})
	tracker.Emit(EventProgress, StageDiscovery, fmt.Sprintf("Discovered %d assets", len(symbols)))

	runPipelines(ctx, s.run, pipelines, symbols)

	if s.needsResample() {
		s.resample(ctx)
	}

	tracker.Emit(EventComplete, "", "Initial fetch complete")
	return buildResult(s.run, len(symbols), startedAt), nil
}

// discoverAssets fetches the source's asset universe and upserts it,
// returning the active symbols.
func (s *InitialStrategy) discoverAssets(ctx context.Context) ([]string, error) {
	if err := s.run.Limiter.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	descriptors, err := s.run.Client.GetAssets(ctx)
	if err != nil {
		return nil, err
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("source returned no assets")
	}

	assets := make([]models.Asset, 0, len(descriptors))
	symbols := make([]string, 0, len(descriptors))
	for _, descriptor := range descriptors {
		if !descriptor.Active {
			continue
		}
		assets = append(assets, models.Asset{
			Source:        s.run.Source,
			Symbol:        descriptor.Symbol,
			BaseCurrency:  descriptor.BaseCurrency,
			QuoteCurrency: descriptor.QuoteCurrency,
			IsActive:      true,
		})
		symbols = append(symbols, descriptor.Symbol)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("source returned no active assets")
	}

	if _, err := s.run.Store.BulkUpsertAssets(ctx, assets); err != nil {
		return nil, err
	}
	return symbols, nil
}

func (s *InitialStrategy) needsResample() bool {
	return s.run.Client.Capabilities().SupportsOHLCV &&
		s.run.Policy.OHLCVInterval != resampleTarget
}

// resample rolls fine-grained candles up to the target interval. Failure
// is recorded but never fails the run; the primary data is already
// stored.
func (s *InitialStrategy) resample(ctx context.Context) {
	tracker := s.run.Tracker
	active := StageActive
	tracker.UpdateStage(StageResample, StageUpdate{Status: &active})
	tracker.Emit(EventProgress, StageResample, "Resampling candles")

	n, err := s.run.Store.ResampleOHLCV(ctx, s.run.Source, s.run.Policy.OHLCVInterval, resampleTarget, time.Hour)
	if err != nil {
		tracker.AddError(fmt.Sprintf("%s resample: %v", s.run.Source, err))
		tracker.MarkStageComplete(StageResample, "Resampling failed")
		return
	}

	one := 1
	tracker.UpdateStage(StageResample, StageUpdate{Completed: &one})
	tracker.MarkStageComplete(StageResample, fmt.Sprintf("Resampled %d candles", n))
}
