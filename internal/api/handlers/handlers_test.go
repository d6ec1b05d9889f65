package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/coinlens/coinlens-go/internal/config"
	"github.com/coinlens/coinlens-go/internal/services"
	"github.com/coinlens/coinlens-go/pkg/platform"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testFetchHandler() *FetchHandler {
	fetchService := services.NewFetchService(&config.Config{}, nil, map[string]platform.PlatformClient{}, nil)
	scheduler := services.NewScheduler(config.SchedulerConfig{}, nil, nil)
	return NewFetchHandler(fetchService, scheduler)
}

func TestTriggerInitialUnknownSource(t *testing.T) {
	router := gin.New()
	router.POST("/api/v1/fetch/initial/:source", testFetchHandler().TriggerInitial)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fetch/initial/kraken", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown source")
}

func TestProgressUnknownSource(t *testing.T) {
	router := gin.New()
	router.GET("/api/v1/fetch/progress/:source", testFetchHandler().Progress)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/fetch/progress/kraken", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchedulerStatusIdleBeforeFirstRun(t *testing.T) {
	router := gin.New()
	router.GET("/api/v1/scheduler/status", testFetchHandler().SchedulerStatus)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scheduler/status", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "idle")
}

func TestCreateManualMappingRejectsInvalidBody(t *testing.T) {
	handler := NewMappingsHandler(nil)
	router := gin.New()
	router.POST("/api/v1/mappings/manual", handler.CreateManual)

	tests := []string{
		`not json`,
		`{}`,
		`{"asset_id": 0, "normalized_symbol": "BTC"}`,
		`{"asset_id": 5}`,
	}
	for _, body := range tests {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/mappings/manual", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}
