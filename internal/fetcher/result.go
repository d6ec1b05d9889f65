package fetcher

import (
	"time"

	"github.com/coinlens/coinlens-go/internal/models"
)

// FetchResult is the terminal output of one strategy execution. It is
// always fully populated, even on total failure (zero counts plus one
// error string), and immutable after return.
type FetchResult struct {
	Source          string                    `json:"source"`
	AssetsProcessed int                       `json:"assets_processed"`
	RecordsFetched  map[models.DataType]int64 `json:"records_fetched"`
	Errors          []string                  `json:"errors"`
	StartedAt       time.Time                 `json:"started_at"`
	CompletedAt     time.Time                 `json:"completed_at"`
}

// Failed reports whether anything went wrong during the run.
func (r *FetchResult) Failed() bool {
	return len(r.Errors) > 0 && r.AssetsProcessed == 0
}

// Partial reports whether the run stored data but also hit errors.
func (r *FetchResult) Partial() bool {
	return len(r.Errors) > 0 && r.AssetsProcessed > 0
}

// TotalRecords sums the per-data-type record counters.
func (r *FetchResult) TotalRecords() int64 {
	var total int64
	for _, n := range r.RecordsFetched {
		total += n
	}
	return total
}
