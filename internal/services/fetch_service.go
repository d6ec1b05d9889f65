package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/coinlens/coinlens-go/internal/cache"
	"github.com/coinlens/coinlens-go/internal/config"
	"github.com/coinlens/coinlens-go/internal/fetcher"
	"github.com/coinlens/coinlens-go/pkg/platform"
)

// FetchService owns the fetch machinery per source: one shared rate
// limiter, one progress tracker and a run-active guard, so two runs for
// the same source can never collide. Strategies are constructed per run
// on top of that shared state.
type FetchService struct {
	cfg         *config.Config
	store       fetcher.Storage
	clients     map[string]platform.PlatformClient
	statusCache *cache.StatusCache

	mu       sync.Mutex
	limiters map[string]*fetcher.RateLimiter
	trackers map[string]*fetcher.ProgressTracker
	running  map[string]bool
}

// NewFetchService creates a fetch service over the configured sources.
// statusCache may be nil; progress mirroring is then disabled.
func NewFetchService(cfg *config.Config, store fetcher.Storage, clients map[string]platform.PlatformClient, statusCache *cache.StatusCache) *FetchService {
	return &FetchService{
		cfg:         cfg,
		store:       store,
		clients:     clients,
		statusCache: statusCache,
		limiters:    make(map[string]*fetcher.RateLimiter),
		trackers:    make(map[string]*fetcher.ProgressTracker),
		running:     make(map[string]bool),
	}
}

// RunInitial executes a full discovery+backfill run for one source.
func (s *FetchService) RunInitial(ctx context.Context, source string) (*fetcher.FetchResult, error) {
	return s.run(ctx, source, func(run *fetcher.PipelineContext) fetcher.Strategy {
		return fetcher.NewInitialStrategy(run)
	})
}

// RunIncremental executes a recent-data refresh run for one source.
func (s *FetchService) RunIncremental(ctx context.Context, source string) (*fetcher.FetchResult, error) {
	return s.run(ctx, source, func(run *fetcher.PipelineContext) fetcher.Strategy {
		return fetcher.NewIncrementalStrategy(run)
	})
}

// Tracker returns the progress tracker for a source so consumers can
// subscribe to its event stream.
func (s *FetchService) Tracker(source string) (*fetcher.ProgressTracker, error) {
	if _, ok := s.clients[source]; !ok {
		return nil, fmt.Errorf("unknown source: %s", source)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackerLocked(source), nil
}

func (s *FetchService) run(ctx context.Context, source string, build func(*fetcher.PipelineContext) fetcher.Strategy) (*fetcher.FetchResult, error) {
	client, ok := s.clients[source]
	if !ok {
		return nil, fmt.Errorf("unknown source: %s", source)
	}
	policy, err := s.cfg.PlatformPolicy(source)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.running[source] {
		s.mu.Unlock()
		return nil, fmt.Errorf("a fetch run for %s is already executing", source)
	}
	s.running[source] = true
	limiter := s.limiterLocked(source, policy)
	tracker := s.trackerLocked(source)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[source] = false
		s.mu.Unlock()
	}()

	stopMirror := s.mirrorProgress(source, tracker)
	defer stopMirror()

	run := &fetcher.PipelineContext{
		Source:  source,
		Policy:  policy,
		Client:  client,
		Store:   s.store,
		Limiter: limiter,
		Tracker: tracker,
	}

	result, err := build(run).Execute(ctx)
	if err != nil {
		log.Printf("Fetch run for %s finished with fatal error: %v", source, err)
	}
	return result, err
}

// limiterLocked returns the source's shared rate limiter, creating it on
// first use. Pipelines never get a private limiter.
func (s *FetchService) limiterLocked(source string, policy config.PlatformPolicy) *fetcher.RateLimiter {
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = fetcher.NewRateLimiter(source, policy.RateLimit.Capacity, policy.RateLimit.IntervalDuration())
		s.limiters[source] = limiter
	}
	return limiter
}

func (s *FetchService) trackerLocked(source string) *fetcher.ProgressTracker {
	tracker, ok := s.trackers[source]
	if !ok {
		tracker = fetcher.NewProgressTracker(source)
		s.trackers[source] = tracker
	}
	return tracker
}

// mirrorProgress copies tracker events into the status cache for
// dashboard polling. Returns a stop function.
func (s *FetchService) mirrorProgress(source string, tracker *fetcher.ProgressTracker) func() {
	if s.statusCache == nil {
		return func() {}
	}

	events, cancel := tracker.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range events {
			s.statusCache.SetProgress(context.Background(), source, event)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
