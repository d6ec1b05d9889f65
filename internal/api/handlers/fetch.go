package handlers

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coinlens/coinlens-go/internal/fetcher"
	"github.com/coinlens/coinlens-go/internal/services"
)

// FetchHandler exposes the manual trigger surface over the fetch
// orchestration core. No orchestration logic lives here; each endpoint
// is a direct call into the services.
type FetchHandler struct {
	fetchService *services.FetchService
	scheduler    *services.Scheduler
}

// NewFetchHandler creates a fetch handler.
func NewFetchHandler(fetchService *services.FetchService, scheduler *services.Scheduler) *FetchHandler {
	return &FetchHandler{
		fetchService: fetchService,
		scheduler:    scheduler,
	}
}

// TriggerInitial starts an initial fetch run for one source in the
// background. Progress is observable via the progress stream.
func (h *FetchHandler) TriggerInitial(c *gin.Context) {
	h.trigger(c, "initial", h.fetchService.RunInitial)
}

// TriggerIncremental starts an incremental fetch run for one source in
// the background.
func (h *FetchHandler) TriggerIncremental(c *gin.Context) {
	h.trigger(c, "incremental", h.fetchService.RunIncremental)
}

func (h *FetchHandler) trigger(c *gin.Context, kind string, run func(context.Context, string) (*fetcher.FetchResult, error)) {
	source := c.Param("source")

	// Validate the source before detaching the run
	if _, err := h.fetchService.Tracker(source); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	go func() {
		result, err := run(context.Background(), source)
		if err != nil {
			log.Printf("Manual %s fetch for %s failed: %v", kind, source, err)
			return
		}
		log.Printf("Manual %s fetch for %s finished: %d assets, %d records, %d errors",
			kind, source, result.AssetsProcessed, result.TotalRecords(), len(result.Errors))
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status": "started",
		"kind":   kind,
		"source": source,
	})
}

// Progress streams progress events for one source as server-sent events
// until the client disconnects.
func (h *FetchHandler) Progress(c *gin.Context) {
	source := c.Param("source")

	tracker, err := h.fetchService.Tracker(source)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	events, cancel := tracker.Subscribe()
	defer cancel()

	// Current state first so late subscribers render immediately
	c.SSEvent("progress", tracker.Snapshot())
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("progress", event)
			return true
		}
	})
}

// SchedulerStatus returns the current run summary.
func (h *FetchHandler) SchedulerStatus(c *gin.Context) {
	summary := h.scheduler.Status()
	if summary == nil {
		c.JSON(http.StatusOK, gin.H{"state": "idle"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
