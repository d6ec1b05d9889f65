package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/coinlens/coinlens-go/internal/api"
	"github.com/coinlens/coinlens-go/internal/api/handlers"
	"github.com/coinlens/coinlens-go/internal/cache"
	"github.com/coinlens/coinlens-go/internal/config"
	"github.com/coinlens/coinlens-go/internal/database"
	"github.com/coinlens/coinlens-go/internal/services"
	"github.com/coinlens/coinlens-go/pkg/platform"
)

func main() {
	// Load .env if present, real environments configure via the process env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	store := database.NewStore(db.Pool)
	statusCache := cache.NewStatusCache(redis.Client, 24*time.Hour)

	// One gateway client per configured platform
	clients := make(map[string]platform.PlatformClient, len(cfg.Platforms))
	for source := range cfg.Platforms {
		clients[source] = platform.NewClient(cfg.Gateway.ServiceURL, cfg.Gateway.Timeout, source)
	}

	fetchService := services.NewFetchService(cfg, store, clients, statusCache)
	reconciliation := services.NewReconciliationService(store.Assets, store.Unified)

	scheduler := services.NewScheduler(cfg.Scheduler, fetchService, statusCache)
	scheduler.Start()
	defer scheduler.Stop()

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	fetchHandler := handlers.NewFetchHandler(fetchService, scheduler)
	mappingsHandler := handlers.NewMappingsHandler(reconciliation)
	api.SetupRoutes(router, db, redis, fetchHandler, mappingsHandler)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
