package fetcher

import (
	"context"
	"fmt"
	"time"
)

// IncrementalStrategy refreshes recent data for assets discovered by an
// earlier initial run. It never performs discovery: an empty stored asset
// list fails the run fast with an explicit error.
type IncrementalStrategy struct {
	run *PipelineContext
}

// NewIncrementalStrategy creates an incremental fetch strategy for the run.
func NewIncrementalStrategy(run *PipelineContext) *IncrementalStrategy {
	run.Incremental = true
	return &IncrementalStrategy{run: run}
}

// Execute loads the stored symbol universe and runs all supported
// pipelines against it.
func (s *IncrementalStrategy) Execute(ctx context.Context) (*FetchResult, error) {
	startedAt := time.Now().UTC()
	tracker := s.run.Tracker

	assets, err := s.run.Store.ListActiveAssets(ctx, s.run.Source)
	if err == nil && len(assets) == 0 {
		err = fmt.Errorf("no stored assets for %s, run an initial fetch first", s.run.Source)
	}
	if err != nil {
		loadErr := fmt.Errorf("asset list for %s: %w", s.run.Source, err)
		tracker.InitStages("incremental", nil)
		tracker.AddError(loadErr.Error())
		tracker.Emit(EventError, "", loadErr.Error())
		return buildResult(s.run, 0, startedAt), loadErr
	}

	symbols := make([]string, 0, len(assets))
	for _, asset := range assets {
		symbols = append(symbols, asset.Symbol)
	}

	pipelines := buildPipelines(s.run)
	tracker.InitStages("incremental", pipelineStages(s.run, pipelines, len(symbols)))
	tracker.Emit(EventStart, "", fmt.Sprintf("Starting incremental fetch for %s (%d assets)", s.run.Source, len(symbols)))

	runPipelines(ctx, s.run, pipelines, symbols)

	tracker.Emit(EventComplete, "", "Incremental fetch complete")
	return buildResult(s.run, len(symbols), startedAt), nil
}
