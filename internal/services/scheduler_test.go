package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinlens/coinlens-go/internal/config"
	"github.com/coinlens/coinlens-go/internal/fetcher"
	"github.com/coinlens/coinlens-go/internal/models"
)

// stubRunner is a canned IncrementalRunner. A non-nil gate blocks every
// run (or only gateSource when set) until the gate closes.
type stubRunner struct {
	mu         sync.Mutex
	calls      []string
	gate       chan struct{}
	gateSource string
	started    chan string

	results map[string]*fetcher.FetchResult
	errs    map[string]error
}

func (r *stubRunner) RunIncremental(_ context.Context, source string) (*fetcher.FetchResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, source)
	r.mu.Unlock()

	if r.started != nil {
		r.started <- source
	}
	if r.gate != nil && (r.gateSource == "" || r.gateSource == source) {
		<-r.gate
	}
	if err, ok := r.errs[source]; ok {
		return nil, err
	}
	if result, ok := r.results[source]; ok {
		return result, nil
	}
	return &fetcher.FetchResult{Source: source, AssetsProcessed: 1}, nil
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func schedulerConfig(sources ...string) config.SchedulerConfig {
	return config.SchedulerConfig{Enabled: true, Interval: "15m", Sources: sources}
}

func TestTickRunsEverySource(t *testing.T) {
	runner := &stubRunner{}
	scheduler := NewScheduler(schedulerConfig("binance", "bybit"), runner, nil)

	ran := scheduler.Tick(context.Background())
	assert.True(t, ran)
	assert.Equal(t, 2, runner.callCount())

	summary := scheduler.Status()
	require.NotNil(t, summary)
	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, RunStateSuccess, summary.State)
	require.NotNil(t, summary.CompletedAt)
	require.Len(t, summary.Sources, 2)
	assert.Equal(t, "binance", summary.Sources[0].Source)
	assert.Equal(t, "bybit", summary.Sources[1].Source)
}

func TestOverlappingTicksAreDropped(t *testing.T) {
	runner := &stubRunner{
		gate:    make(chan struct{}),
		started: make(chan string, 1),
	}
	scheduler := NewScheduler(schedulerConfig("binance"), runner, nil)

	firstDone := make(chan bool, 1)
	go func() {
		firstDone <- scheduler.Tick(context.Background())
	}()

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick never started")
	}

	// Second tick while the first is mid-run performs zero work
	assert.False(t, scheduler.Tick(context.Background()))
	assert.Equal(t, 1, runner.callCount())

	close(runner.gate)
	select {
	case ran := <-firstDone:
		assert.True(t, ran)
	case <-time.After(2 * time.Second):
		t.Fatal("first tick never finished")
	}

	// The guard is free again after the run drains
	runner.started = nil
	assert.True(t, scheduler.Tick(context.Background()))
	assert.Equal(t, 2, runner.callCount())
}

func TestSourceFailureDoesNotStopTheRun(t *testing.T) {
	runner := &stubRunner{
		errs: map[string]error{"binance": errors.New("gateway down")},
	}
	scheduler := NewScheduler(schedulerConfig("binance", "bybit"), runner, nil)

	require.True(t, scheduler.Tick(context.Background()))
	assert.Equal(t, 2, runner.callCount())

	summary := scheduler.Status()
	require.NotNil(t, summary)
	assert.Equal(t, RunStatePartial, summary.State)

	require.Len(t, summary.Sources, 2)
	assert.Equal(t, RunStateFailed, summary.Sources[0].State)
	require.Len(t, summary.Sources[0].Errors, 1)
	assert.Contains(t, summary.Sources[0].Errors[0], "gateway down")
	assert.Equal(t, RunStateSuccess, summary.Sources[1].State)
}

func TestPartialFetchResultReportsPartialState(t *testing.T) {
	runner := &stubRunner{
		results: map[string]*fetcher.FetchResult{
			"binance": {
				Source:          "binance",
				AssetsProcessed: 10,
				RecordsFetched:  map[models.DataType]int64{models.DataTypeFunding: 50},
				Errors:          []string{"binance funding XYZUSDT: HTTP 500"},
			},
		},
	}
	scheduler := NewScheduler(schedulerConfig("binance"), runner, nil)

	require.True(t, scheduler.Tick(context.Background()))

	summary := scheduler.Status()
	require.NotNil(t, summary)
	require.Len(t, summary.Sources, 1)
	assert.Equal(t, RunStatePartial, summary.Sources[0].State)
	assert.Equal(t, 10, summary.Sources[0].AssetsProcessed)
	assert.Equal(t, RunStatePartial, summary.State)
}

func TestStatusIsASnapshotWhileRunInFlight(t *testing.T) {
	runner := &stubRunner{
		gate:       make(chan struct{}),
		gateSource: "bybit",
		started:    make(chan string, 2),
	}
	scheduler := NewScheduler(schedulerConfig("binance", "bybit"), runner, nil)

	// Hammer Status concurrently with the run; the race detector flags
	// any unsynchronized summary mutation.
	stop := make(chan struct{})
	var polls sync.WaitGroup
	polls.Add(1)
	go func() {
		defer polls.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if summary := scheduler.Status(); summary != nil {
				_ = summary.State
				_ = len(summary.Sources)
				if summary.CompletedAt != nil {
					_ = summary.Duration
				}
			}
		}
	}()

	done := make(chan bool, 1)
	go func() {
		done <- scheduler.Tick(context.Background())
	}()

	require.Equal(t, "binance", <-runner.started)
	require.Equal(t, "bybit", <-runner.started)

	// binance has completed, bybit is blocked on the gate
	mid := scheduler.Status()
	require.NotNil(t, mid)
	assert.Equal(t, RunStateRunning, mid.State)
	assert.Nil(t, mid.CompletedAt)
	require.Len(t, mid.Sources, 1)
	assert.Equal(t, "binance", mid.Sources[0].Source)

	close(runner.gate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never finished")
	}
	close(stop)
	polls.Wait()

	// The mid-run snapshot stays untouched by the rest of the run
	assert.Equal(t, RunStateRunning, mid.State)
	assert.Nil(t, mid.CompletedAt)
	require.Len(t, mid.Sources, 1)

	final := scheduler.Status()
	require.NotNil(t, final)
	assert.Equal(t, RunStateSuccess, final.State)
	require.NotNil(t, final.CompletedAt)
	require.Len(t, final.Sources, 2)
}

func TestAggregateState(t *testing.T) {
	results := func(states ...RunState) []SourceRunResult {
		out := make([]SourceRunResult, len(states))
		for i, state := range states {
			out[i] = SourceRunResult{State: state}
		}
		return out
	}

	assert.Equal(t, RunStateSuccess, aggregateState(nil))
	assert.Equal(t, RunStateSuccess, aggregateState(results(RunStateSuccess, RunStateSuccess)))
	assert.Equal(t, RunStateFailed, aggregateState(results(RunStateFailed, RunStateFailed)))
	assert.Equal(t, RunStatePartial, aggregateState(results(RunStateSuccess, RunStateFailed)))
	assert.Equal(t, RunStatePartial, aggregateState(results(RunStatePartial, RunStatePartial)))
}

func TestRunGuardSingleSlot(t *testing.T) {
	var guard RunGuard
	assert.True(t, guard.TryAcquire())
	assert.False(t, guard.TryAcquire())
	guard.Release()
	assert.True(t, guard.TryAcquire())
}

func TestStatusBeforeFirstTick(t *testing.T) {
	scheduler := NewScheduler(schedulerConfig("binance"), &stubRunner{}, nil)
	assert.Nil(t, scheduler.Status())
}

func TestDisabledSchedulerStartsNothing(t *testing.T) {
	runner := &stubRunner{}
	scheduler := NewScheduler(config.SchedulerConfig{Enabled: false, Sources: []string{"binance"}}, runner, nil)

	scheduler.Start()
	scheduler.Stop()

	assert.Zero(t, runner.callCount())
	assert.Nil(t, scheduler.Status())
}
