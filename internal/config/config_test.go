package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "coinlens", cfg.Database.DBName)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.TickInterval())

	// Every default scheduler source carries a policy
	for _, source := range cfg.Scheduler.Sources {
		policy, err := cfg.PlatformPolicy(source)
		require.NoError(t, err, source)
		assert.Positive(t, policy.Concurrency, source)
		assert.Positive(t, policy.RateLimit.Capacity, source)
	}
}

func TestSnapshotOnlyOpenInterestDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsSnapshotOnlyOpenInterest("hyperliquid"))
	assert.False(t, cfg.IsSnapshotOnlyOpenInterest("binance"))
	assert.False(t, cfg.IsSnapshotOnlyOpenInterest("unknown"))
}

func TestPlatformPolicyLookupIsCaseInsensitive(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	_, err = cfg.PlatformPolicy("Binance")
	assert.NoError(t, err)

	_, err = cfg.PlatformPolicy("kraken")
	assert.Error(t, err)
}

func TestSchedulerTickIntervalFallback(t *testing.T) {
	assert.Equal(t, 15*time.Minute, SchedulerConfig{}.TickInterval())
	assert.Equal(t, 15*time.Minute, SchedulerConfig{Interval: "garbage"}.TickInterval())
	assert.Equal(t, time.Hour, SchedulerConfig{Interval: "1h"}.TickInterval())
}

func TestRateLimitIntervalDuration(t *testing.T) {
	assert.Equal(t, time.Second, RateLimitConfig{}.IntervalDuration())
	assert.Equal(t, time.Minute, RateLimitConfig{Interval: "1m"}.IntervalDuration())
	assert.Equal(t, time.Second, RateLimitConfig{Interval: "-5s"}.IntervalDuration())
}

func TestPolicyDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), PlatformPolicy{}.Delay())
	assert.Equal(t, 50*time.Millisecond, PlatformPolicy{RequestDelay: "50ms"}.Delay())
	assert.Equal(t, time.Duration(0), PlatformPolicy{RequestDelay: "junk"}.Delay())
}
