package fetcher

import (
	"math"
	"sync"
	"time"

	"github.com/coinlens/coinlens-go/internal/models"
)

// StageStatus is the lifecycle state of one progress stage.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageActive   StageStatus = "active"
	StageComplete StageStatus = "complete"
)

// EventType classifies a progress event.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Stage is a snapshot of one named phase of a fetch run.
type Stage struct {
	Key        string      `json:"key"`
	Label      string      `json:"label"`
	Status     StageStatus `json:"status"`
	Completed  int         `json:"completed"`
	Total      int         `json:"total"`
	Percentage int         `json:"percentage"`
	Message    string      `json:"message,omitempty"`
}

// StageInit declares one stage when a run is initialized.
type StageInit struct {
	Key   string
	Label string
	Total int
}

// StageUpdate carries a partial update for one stage. Nil fields keep
// their current value.
type StageUpdate struct {
	Completed *int
	Total     *int
	Status    *StageStatus
	Message   string
}

// ProgressEvent is a full-run snapshot published to subscribers.
type ProgressEvent struct {
	Type      EventType                 `json:"type"`
	Source    string                    `json:"source"`
	Phase     string                    `json:"phase"`
	Stage     string                    `json:"stage,omitempty"`
	Message   string                    `json:"message,omitempty"`
	Stages    []Stage                   `json:"stages"`
	Records   map[models.DataType]int64 `json:"records"`
	Errors    []string                  `json:"errors"`
	Overall   int                       `json:"overall_percentage"`
	Timestamp time.Time                 `json:"timestamp"`
}

// subscriberBuffer bounds how many events a slow consumer can lag before
// updates are dropped for it.
const subscriberBuffer = 64

// ProgressTracker holds the stage state of one fetch run and publishes
// snapshots to subscribers. It knows nothing about what a stage means;
// pipelines decide semantics, the tracker only enforces the aggregation
// arithmetic and stage ordering within a run.
type ProgressTracker struct {
	mu          sync.Mutex
	source      string
	phase       string
	order       []string
	stages      map[string]*Stage
	records     map[models.DataType]int64
	errors      []string
	subscribers map[int]chan ProgressEvent
	nextSubID   int
}

// NewProgressTracker creates an empty tracker for one source.
func NewProgressTracker(source string) *ProgressTracker {
	return &ProgressTracker{
		source:      source,
		stages:      make(map[string]*Stage),
		records:     make(map[models.DataType]int64),
		subscribers: make(map[int]chan ProgressEvent),
	}
}

// InitStages resets the tracker for a new run and declares its ordered
// stage list. Stale stage state from a previous run never leaks into the
// new one. Subscribers survive the reset.
func (t *ProgressTracker) InitStages(phase string, inits []StageInit) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.phase = phase
	t.order = t.order[:0]
	t.stages = make(map[string]*Stage)
	t.records = make(map[models.DataType]int64)
	t.errors = nil

	for _, init := range inits {
		t.order = append(t.order, init.Key)
		t.stages[init.Key] = &Stage{
			Key:    init.Key,
			Label:  init.Label,
			Status: StagePending,
			Total:  init.Total,
		}
	}
}

// SetPhase updates the run phase shown in snapshots.
func (t *ProgressTracker) SetPhase(phase string) {
	t.mu.Lock()
	t.phase = phase
	t.mu.Unlock()
}

// UpdateStage applies a partial update to one stage and recomputes its
// percentage. Unknown keys are ignored. The percentage never regresses
// while a stage stays active.
func (t *ProgressTracker) UpdateStage(key string, update StageUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stage, ok := t.stages[key]
	if !ok {
		return
	}

	if update.Total != nil {
		stage.Total = *update.Total
	}
	if update.Completed != nil {
		stage.Completed = *update.Completed
	}
	if update.Status != nil {
		stage.Status = *update.Status
	}
	if update.Message != "" {
		stage.Message = update.Message
	}

	pct := stagePercentage(stage)
	if stage.Status == StageActive && pct < stage.Percentage {
		pct = stage.Percentage
	}
	stage.Percentage = pct
}

// MarkStageComplete sets a stage complete with an optional message.
func (t *ProgressTracker) MarkStageComplete(key, message string) {
	status := StageComplete
	t.UpdateStage(key, StageUpdate{Status: &status, Message: message})
}

// SkipStages marks stages complete with a skip message, used when a data
// type is unsupported by the source.
func (t *ProgressTracker) SkipStages(message string, keys ...string) {
	for _, key := range keys {
		t.MarkStageComplete(key, message)
	}
}

// AddError records one run error.
func (t *ProgressTracker) AddError(message string) {
	t.mu.Lock()
	t.errors = append(t.errors, message)
	t.mu.Unlock()
}

// Errors returns a copy of the accumulated error list.
func (t *ProgressTracker) Errors() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.errors))
	copy(out, t.errors)
	return out
}

// AddRecords adds to the cumulative per-data-type record counter.
func (t *ProgressTracker) AddRecords(dataType models.DataType, n int64) {
	if n == 0 {
		return
	}
	t.mu.Lock()
	t.records[dataType] += n
	t.mu.Unlock()
}

// RecordTotals returns a copy of the cumulative record counters.
func (t *ProgressTracker) RecordTotals() map[models.DataType]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[models.DataType]int64, len(t.records))
	for dataType, n := range t.records {
		out[dataType] = n
	}
	return out
}

// Subscribe registers a consumer for progress events. The returned cancel
// function must be called to release the subscription. Events are dropped
// for consumers that fall more than subscriberBuffer events behind.
func (t *ProgressTracker) Subscribe() (<-chan ProgressEvent, func()) {
	t.mu.Lock()
	id := t.nextSubID
	t.nextSubID++
	ch := make(chan ProgressEvent, subscriberBuffer)
	t.subscribers[id] = ch
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		if sub, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(sub)
		}
		t.mu.Unlock()
	}
	return ch, cancel
}

// Emit publishes a full-run snapshot to all subscribers.
func (t *ProgressTracker) Emit(eventType EventType, stage, message string) {
	t.mu.Lock()
	event := t.snapshotLocked(eventType, stage, message)
	for _, sub := range t.subscribers {
		select {
		case sub <- event:
		default:
			// Slow consumer, drop rather than stall the run.
		}
	}
	t.mu.Unlock()
}

// Snapshot returns the current full-run snapshot without publishing it.
func (t *ProgressTracker) Snapshot() ProgressEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(EventProgress, "", "")
}

func (t *ProgressTracker) snapshotLocked(eventType EventType, stage, message string) ProgressEvent {
	stages := make([]Stage, 0, len(t.order))
	for _, key := range t.order {
		stages = append(stages, *t.stages[key])
	}

	records := make(map[models.DataType]int64, len(t.records))
	for dataType, n := range t.records {
		records[dataType] = n
	}

	errs := make([]string, len(t.errors))
	copy(errs, t.errors)

	return ProgressEvent{
		Type:      eventType,
		Source:    t.source,
		Phase:     t.phase,
		Stage:     stage,
		Message:   message,
		Stages:    stages,
		Records:   records,
		Errors:    errs,
		Overall:   overallPercentage(stages),
		Timestamp: time.Now().UTC(),
	}
}

// stagePercentage computes a stage's percentage. A complete stage is
// always 100, skipped stages included. Sized stages report
// completed/total; an unsized stage reports 100 once it has produced
// output, 0 otherwise.
func stagePercentage(stage *Stage) int {
	if stage.Status == StageComplete {
		return 100
	}
	if stage.Total > 0 {
		pct := int(math.Round(100 * float64(stage.Completed) / float64(stage.Total)))
		if pct > 100 {
			pct = 100
		}
		return pct
	}
	if stage.Completed > 0 {
		return 100
	}
	return 0
}

// overallPercentage is a total-weighted average of stage percentages. A
// stage's weight is its total, or 1 when it has no known size, so unsized
// stages do not distort the aggregate once sized stages exist.
func overallPercentage(stages []Stage) int {
	var weighted, weights float64
	for _, stage := range stages {
		weight := float64(stage.Total)
		if stage.Total <= 0 {
			weight = 1
		}
		weighted += weight * float64(stage.Percentage)
		weights += weight
	}
	if weights == 0 {
		return 0
	}
	return int(math.Round(weighted / weights))
}
