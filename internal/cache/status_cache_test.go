package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*StatusCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStatusCache(client, ttl), mr
}

func TestStatusCacheProgressRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	event := map[string]interface{}{
		"type":    "progress",
		"source":  "binance",
		"overall": 42,
	}
	cache.SetProgress(context.Background(), "binance", event)

	raw, err := cache.GetProgress(context.Background(), "binance")
	require.NoError(t, err)
	require.NotNil(t, raw)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "binance", decoded["source"])
	assert.Equal(t, float64(42), decoded["overall"])
}

func TestStatusCacheProgressMissing(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	raw, err := cache.GetProgress(context.Background(), "bybit")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestStatusCacheProgressExpires(t *testing.T) {
	cache, mr := newTestCache(t, time.Second)

	cache.SetProgress(context.Background(), "binance", map[string]string{"state": "running"})
	mr.FastForward(2 * time.Second)

	raw, err := cache.GetProgress(context.Background(), "binance")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestStatusCacheRunSummaryRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	cache.SetRunSummary(context.Background(), map[string]string{"state": "success"})

	raw, err := cache.GetRunSummary(context.Background())
	require.NoError(t, err)
	require.NotNil(t, raw)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "success", decoded["state"])
}

func TestStatusCacheKeysAreScopedPerSource(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	cache.SetProgress(context.Background(), "binance", map[string]string{"source": "binance"})
	cache.SetProgress(context.Background(), "okx", map[string]string{"source": "okx"})

	raw, err := cache.GetProgress(context.Background(), "okx")
	require.NoError(t, err)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "okx", decoded["source"])
}
