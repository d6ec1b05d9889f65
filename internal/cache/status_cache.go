package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	progressKeyPrefix = "fetch:progress:"
	runSummaryKey     = "scheduler:run_summary"
)

// StatusCache keeps the latest progress event per source and the current
// scheduler run summary in Redis so the dashboard can poll without
// holding an event stream open.
type StatusCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStatusCache creates a status cache with the given entry TTL.
func NewStatusCache(redisClient *redis.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &StatusCache{redis: redisClient, ttl: ttl}
}

// SetProgress stores the latest progress event for a source. Failures
// are logged, not returned; the cache is advisory.
func (c *StatusCache) SetProgress(ctx context.Context, source string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Warn("Failed to marshal progress event")
		return
	}
	if err := c.redis.Set(ctx, progressKeyPrefix+source, data, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("source", source).Warn("Failed to cache progress event")
	}
}

// GetProgress returns the raw JSON of the latest progress event for a
// source, or nil when none is cached.
func (c *StatusCache) GetProgress(ctx context.Context, source string) ([]byte, error) {
	data, err := c.redis.Get(ctx, progressKeyPrefix+source).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress for %s: %w", source, err)
	}
	return data, nil
}

// SetRunSummary stores the current scheduler run summary.
func (c *StatusCache) SetRunSummary(ctx context.Context, summary interface{}) {
	data, err := json.Marshal(summary)
	if err != nil {
		logrus.WithError(err).Warn("Failed to marshal run summary")
		return
	}
	if err := c.redis.Set(ctx, runSummaryKey, data, c.ttl).Err(); err != nil {
		logrus.WithError(err).Warn("Failed to cache run summary")
	}
}

// GetRunSummary returns the raw JSON of the current run summary, or nil
// when none is cached.
func (c *StatusCache) GetRunSummary(ctx context.Context) ([]byte, error) {
	data, err := c.redis.Get(ctx, runSummaryKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run summary: %w", err)
	}
	return data, nil
}
