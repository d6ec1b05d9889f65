package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/coinlens/coinlens-go/internal/models"
	"github.com/coinlens/coinlens-go/pkg/platform"
)

// Strategy is the top-level orchestration recipe for one fetch run.
type Strategy interface {
	Execute(ctx context.Context) (*FetchResult, error)
}

// buildPipelines returns the pipeline list for one run. The order is a
// deliberate policy, not incidental call order: pipelines execute
// sequentially, one data type at a time, because some sources trip WAF
// defenses on burst diversity. Concurrency lives inside a pipeline,
// across symbols, never across pipelines.
func buildPipelines(run *PipelineContext) []Pipeline {
	return []Pipeline{
		NewFundingPipeline(run),
		NewOHLCVPipeline(run),
		NewOpenInterestPipeline(run),
		NewLongShortRatioPipeline(run),
		NewLiquidationPipeline(run),
	}
}

// supportsDataType reports whether the source exposes a data series at
// all. Data types the source cannot serve get no stages; types it serves
// but the run skips (snapshot-only OI on initial runs) keep their stages
// and surface the skip message there.
func supportsDataType(caps platform.Capabilities, dataType models.DataType) bool {
	switch dataType {
	case models.DataTypeFunding:
		return caps.SupportsFunding
	case models.DataTypeOHLCV:
		return caps.SupportsOHLCV
	case models.DataTypeOpenInterest:
		return caps.SupportsOpenInterest
	case models.DataTypeLongShortRatio:
		return caps.SupportsLongShortRatio
	case models.DataTypeLiquidation:
		return caps.SupportsLiquidations
	}
	return false
}

// pipelineStages collects the stage declarations of all supported
// pipelines, sized to the symbol count.
func pipelineStages(run *PipelineContext, pipelines []Pipeline, symbolCount int) []StageInit {
	caps := run.Client.Capabilities()
	var inits []StageInit
	for _, pipeline := range pipelines {
		if supportsDataType(caps, pipeline.DataType()) {
			inits = append(inits, pipeline.Stages(symbolCount)...)
		}
	}
	return inits
}

// runPipelines executes pipelines strictly sequentially. A pipeline-level
// failure, panics included, becomes an accumulated error; later pipelines
// still run.
func runPipelines(ctx context.Context, run *PipelineContext, pipelines []Pipeline, symbols []string) {
	for _, pipeline := range pipelines {
		if err := runPipeline(ctx, pipeline, symbols); err != nil {
			run.Tracker.AddError(fmt.Sprintf("%s %s pipeline: %v", run.Source, pipeline.DataType(), err))
			run.Tracker.Emit(EventError, "", err.Error())
		}
	}
}

func runPipeline(ctx context.Context, pipeline Pipeline, symbols []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, err = pipeline.Execute(ctx, symbols)
	return err
}

// buildResult assembles the terminal FetchResult from the tracker state.
func buildResult(run *PipelineContext, assetsProcessed int, startedAt time.Time) *FetchResult {
	return &FetchResult{
		Source:          run.Source,
		AssetsProcessed: assetsProcessed,
		RecordsFetched:  run.Tracker.RecordTotals(),
		Errors:          run.Tracker.Errors(),
		StartedAt:       startedAt,
		CompletedAt:     time.Now().UTC(),
	}
}
