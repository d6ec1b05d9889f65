package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coinlens/coinlens-go/internal/api/handlers"
	"github.com/coinlens/coinlens-go/internal/database"
)

// SetupRoutes configures all API routes.
func SetupRoutes(
	router *gin.Engine,
	db *database.PostgresDB,
	redis *database.RedisClient,
	fetchHandler *handlers.FetchHandler,
	mappingsHandler *handlers.MappingsHandler,
) {
	router.GET("/health", healthCheck(db, redis))

	v1 := router.Group("/api/v1")
	{
		fetch := v1.Group("/fetch")
		{
			fetch.POST("/initial/:source", fetchHandler.TriggerInitial)
			fetch.POST("/incremental/:source", fetchHandler.TriggerIncremental)
			fetch.GET("/progress/:source", fetchHandler.Progress)
		}

		v1.GET("/scheduler/status", fetchHandler.SchedulerStatus)

		mappings := v1.Group("/mappings")
		{
			mappings.GET("", mappingsHandler.List)
			mappings.POST("/generate", mappingsHandler.Generate)
			mappings.POST("/manual", mappingsHandler.CreateManual)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		overall := "healthy"
		services := gin.H{"database": "healthy", "redis": "healthy"}

		if err := db.HealthCheck(c.Request.Context()); err != nil {
			services["database"] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}

		c.JSON(status, gin.H{
			"status":    overall,
			"services":  services,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
