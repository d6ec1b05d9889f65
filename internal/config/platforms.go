package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PlatformPolicy is the static per-source fetch policy. It is constructed
// once at load time and read-only afterwards.
type PlatformPolicy struct {
	SampleInterval  string          `mapstructure:"sample_interval"`
	OHLCVInterval   string          `mapstructure:"ohlcv_interval"`
	OIInterval      string          `mapstructure:"oi_interval"`
	LSRatioInterval string          `mapstructure:"ls_ratio_interval"`
	Concurrency     int             `mapstructure:"concurrency"`
	RequestDelay    string          `mapstructure:"request_delay"`
	PageLimit       int             `mapstructure:"page_limit"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`

	// SnapshotOnlyOI marks sources whose open interest API exposes only
	// the current value, not a time series.
	SnapshotOnlyOI bool `mapstructure:"snapshot_only_oi"`
}

// RateLimitConfig describes a token bucket: Capacity units per Interval.
type RateLimitConfig struct {
	Capacity int    `mapstructure:"capacity"`
	Interval string `mapstructure:"interval"`
}

// IntervalDuration parses the bucket refill window, defaulting to one second.
func (r RateLimitConfig) IntervalDuration() time.Duration {
	if d, err := time.ParseDuration(r.Interval); err == nil && d > 0 {
		return d
	}
	return time.Second
}

// Delay parses the inter-request delay for the source, defaulting to zero.
func (p PlatformPolicy) Delay() time.Duration {
	if d, err := time.ParseDuration(p.RequestDelay); err == nil && d > 0 {
		return d
	}
	return 0
}

// PlatformPolicy looks up the fetch policy for a source.
func (c *Config) PlatformPolicy(source string) (PlatformPolicy, error) {
	policy, ok := c.Platforms[strings.ToLower(source)]
	if !ok {
		return PlatformPolicy{}, fmt.Errorf("unknown platform: %s", source)
	}
	return policy, nil
}

// IsSnapshotOnlyOpenInterest reports whether the source only exposes a
// current open interest snapshot. Unknown sources report false.
func (c *Config) IsSnapshotOnlyOpenInterest(source string) bool {
	policy, ok := c.Platforms[strings.ToLower(source)]
	return ok && policy.SnapshotOnlyOI
}

func setPlatformDefaults() {
	// Binance allows 2400 request weight units per minute on futures.
	viper.SetDefault("platforms.binance.sample_interval", "5m")
	viper.SetDefault("platforms.binance.ohlcv_interval", "5m")
	viper.SetDefault("platforms.binance.oi_interval", "5m")
	viper.SetDefault("platforms.binance.ls_ratio_interval", "5m")
	viper.SetDefault("platforms.binance.concurrency", 8)
	viper.SetDefault("platforms.binance.request_delay", "50ms")
	viper.SetDefault("platforms.binance.page_limit", 500)
	viper.SetDefault("platforms.binance.rate_limit.capacity", 1200)
	viper.SetDefault("platforms.binance.rate_limit.interval", "1m")
	viper.SetDefault("platforms.binance.snapshot_only_oi", false)

	viper.SetDefault("platforms.bybit.sample_interval", "5m")
	viper.SetDefault("platforms.bybit.ohlcv_interval", "5m")
	viper.SetDefault("platforms.bybit.oi_interval", "5m")
	viper.SetDefault("platforms.bybit.ls_ratio_interval", "5m")
	viper.SetDefault("platforms.bybit.concurrency", 5)
	viper.SetDefault("platforms.bybit.request_delay", "100ms")
	viper.SetDefault("platforms.bybit.page_limit", 200)
	viper.SetDefault("platforms.bybit.rate_limit.capacity", 600)
	viper.SetDefault("platforms.bybit.rate_limit.interval", "1m")
	viper.SetDefault("platforms.bybit.snapshot_only_oi", false)

	viper.SetDefault("platforms.okx.sample_interval", "5m")
	viper.SetDefault("platforms.okx.ohlcv_interval", "5m")
	viper.SetDefault("platforms.okx.oi_interval", "5m")
	viper.SetDefault("platforms.okx.ls_ratio_interval", "5m")
	viper.SetDefault("platforms.okx.concurrency", 3)
	viper.SetDefault("platforms.okx.request_delay", "200ms")
	viper.SetDefault("platforms.okx.page_limit", 100)
	viper.SetDefault("platforms.okx.rate_limit.capacity", 20)
	viper.SetDefault("platforms.okx.rate_limit.interval", "2s")
	viper.SetDefault("platforms.okx.snapshot_only_oi", false)

	// Hyperliquid exposes open interest only as a current snapshot.
	viper.SetDefault("platforms.hyperliquid.sample_interval", "5m")
	viper.SetDefault("platforms.hyperliquid.ohlcv_interval", "5m")
	viper.SetDefault("platforms.hyperliquid.oi_interval", "5m")
	viper.SetDefault("platforms.hyperliquid.ls_ratio_interval", "5m")
	viper.SetDefault("platforms.hyperliquid.concurrency", 2)
	viper.SetDefault("platforms.hyperliquid.request_delay", "250ms")
	viper.SetDefault("platforms.hyperliquid.page_limit", 500)
	viper.SetDefault("platforms.hyperliquid.rate_limit.capacity", 1200)
	viper.SetDefault("platforms.hyperliquid.rate_limit.interval", "1m")
	viper.SetDefault("platforms.hyperliquid.snapshot_only_oi", true)
}
