package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coinlens/coinlens-go/internal/cache"
	"github.com/coinlens/coinlens-go/internal/config"
	"github.com/coinlens/coinlens-go/internal/fetcher"
	"github.com/coinlens/coinlens-go/internal/models"
)

// RunState classifies the outcome of a scheduled run or one of its
// per-source sub-results.
type RunState string

const (
	RunStateRunning RunState = "running"
	RunStateSuccess RunState = "success"
	RunStatePartial RunState = "partial"
	RunStateFailed  RunState = "failed"
)

// SourceRunResult is the outcome of one source within a scheduled run.
type SourceRunResult struct {
	Source          string                    `json:"source"`
	State           RunState                  `json:"state"`
	AssetsProcessed int                       `json:"assets_processed"`
	Records         map[models.DataType]int64 `json:"records"`
	Errors          []string                  `json:"errors"`
	Duration        time.Duration             `json:"duration_ns"`
}

// RunSummary describes the current (or last completed) scheduled run.
// Exactly one summary is current at a time; each tick overwrites it.
type RunSummary struct {
	ID          string            `json:"id"`
	State       RunState          `json:"state"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at"`
	Duration    time.Duration     `json:"duration_ns"`
	Sources     []SourceRunResult `json:"sources"`
}

// RunGuard is a single-slot exclusive guard. A tick that cannot acquire
// it is dropped, never queued.
type RunGuard struct {
	mu   sync.Mutex
	held bool
}

// TryAcquire takes the guard if it is free.
func (g *RunGuard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return false
	}
	g.held = true
	return true
}

// Release frees the guard.
func (g *RunGuard) Release() {
	g.mu.Lock()
	g.held = false
	g.mu.Unlock()
}

// IncrementalRunner runs one incremental fetch for a source. Implemented
// by FetchService.
type IncrementalRunner interface {
	RunIncremental(ctx context.Context, source string) (*fetcher.FetchResult, error)
}

// Scheduler periodically refreshes every configured source through the
// incremental strategy. Sources run sequentially within a tick;
// overlapping ticks are skipped while a run is executing.
type Scheduler struct {
	cfg         config.SchedulerConfig
	runner      IncrementalRunner
	statusCache *cache.StatusCache
	guard       RunGuard

	mu      sync.RWMutex
	current *RunSummary

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. statusCache may be nil.
func NewScheduler(cfg config.SchedulerConfig, runner IncrementalRunner, statusCache *cache.StatusCache) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:         cfg,
		runner:      runner,
		statusCache: statusCache,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins the periodic tick loop.
func (s *Scheduler) Start() {
	if !s.cfg.Enabled {
		log.Println("Scheduler disabled by configuration")
		return
	}

	interval := s.cfg.TickInterval()
	log.Printf("Starting scheduler with %s interval for %d sources", interval, len(s.cfg.Sources))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.Tick(s.ctx)
			}
		}
	}()
}

// Stop stops the tick loop. A run in flight drains to completion.
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler")
	s.cancel()
	s.wg.Wait()
}

// Tick runs one scheduled pass unless a run is already executing, in
// which case it performs zero work. Returns whether the tick ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.guard.TryAcquire() {
		log.Println("Scheduler tick skipped: a run is still executing")
		return false
	}
	defer s.guard.Release()

	s.runOnce(ctx)
	return true
}

// Status returns the current run summary, or nil before the first tick.
// The returned summary is an immutable snapshot and is never mutated by
// a run in flight.
func (s *Scheduler) Status() *RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Scheduler) runOnce(ctx context.Context) {
	summary := RunSummary{
		ID:        uuid.New().String(),
		State:     RunStateRunning,
		StartedAt: time.Now().UTC(),
	}
	s.publish(summary)

	for _, source := range s.cfg.Sources {
		summary.Sources = append(summary.Sources, s.runSource(ctx, source))
		s.publish(summary)
	}

	completed := time.Now().UTC()
	summary.CompletedAt = &completed
	summary.Duration = completed.Sub(summary.StartedAt)
	summary.State = aggregateState(summary.Sources)
	s.publish(summary)

	log.Printf("Scheduled run %s finished: %s in %s", summary.ID, summary.State, summary.Duration)
}

// runSource executes one source's incremental fetch. A total failure of
// one source never prevents the remaining sources from running.
func (s *Scheduler) runSource(ctx context.Context, source string) SourceRunResult {
	started := time.Now()
	result, err := s.runner.RunIncremental(ctx, source)

	outcome := SourceRunResult{
		Source:   source,
		Duration: time.Since(started),
	}
	if result != nil {
		outcome.AssetsProcessed = result.AssetsProcessed
		outcome.Records = result.RecordsFetched
		outcome.Errors = result.Errors
	}

	switch {
	case err != nil || result == nil || result.Failed():
		outcome.State = RunStateFailed
		if err != nil && len(outcome.Errors) == 0 {
			outcome.Errors = []string{err.Error()}
		}
		log.Printf("Scheduled fetch for %s failed: %v", source, err)
	case result.Partial():
		outcome.State = RunStatePartial
	default:
		outcome.State = RunStateSuccess
	}
	return outcome
}

// publish stores a snapshot of the summary. runOnce keeps appending to
// its own copy afterwards, so the snapshot owns its Sources slice and
// stays safe for concurrent Status readers and cache marshaling.
func (s *Scheduler) publish(summary RunSummary) {
	summary.Sources = append([]SourceRunResult(nil), summary.Sources...)

	s.mu.Lock()
	s.current = &summary
	s.mu.Unlock()

	if s.statusCache != nil {
		s.statusCache.SetRunSummary(context.Background(), &summary)
	}
}

// aggregateState applies the worst-case rule: failed when every source
// failed, success when every source succeeded, partial otherwise.
func aggregateState(sources []SourceRunResult) RunState {
	if len(sources) == 0 {
		return RunStateSuccess
	}
	var failed, success int
	for _, source := range sources {
		switch source.State {
		case RunStateFailed:
			failed++
		case RunStateSuccess:
			success++
		}
	}
	switch {
	case failed == len(sources):
		return RunStateFailed
	case success == len(sources):
		return RunStateSuccess
	default:
		return RunStatePartial
	}
}
