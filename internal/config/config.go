package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Gateway     GatewayConfig   `mapstructure:"gateway"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`

	// Platforms maps a source id to its fetch policy. Keys are lowercase.
	Platforms map[string]PlatformPolicy `mapstructure:"platforms"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	DatabaseURL  string `mapstructure:"database_url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GatewayConfig points at the market data gateway service that performs
// the exchange-specific request/response translation.
type GatewayConfig struct {
	ServiceURL string `mapstructure:"service_url"`
	Timeout    int    `mapstructure:"timeout"`
}

type SchedulerConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Interval string   `mapstructure:"interval"`
	Sources  []string `mapstructure:"sources"`
}

// TickInterval parses the scheduler interval, falling back to 15 minutes.
func (s SchedulerConfig) TickInterval() time.Duration {
	if d, err := time.ParseDuration(s.Interval); err == nil && d > 0 {
		return d
	}
	return 15 * time.Minute
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	// Validate scheduler interval
	if config.Scheduler.Interval != "" {
		if _, err := time.ParseDuration(config.Scheduler.Interval); err != nil {
			return nil, fmt.Errorf("invalid scheduler interval: %w", err)
		}
	}

	// Every scheduled source needs a platform policy
	for _, source := range config.Scheduler.Sources {
		if _, ok := config.Platforms[strings.ToLower(source)]; !ok {
			return nil, fmt.Errorf("scheduler source %q has no platform policy", source)
		}
	}

	return &config, nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "coinlens")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Gateway
	viper.SetDefault("gateway.service_url", "http://localhost:3001")
	viper.SetDefault("gateway.timeout", 30)

	// Scheduler
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.interval", "15m")
	viper.SetDefault("scheduler.sources", []string{"binance", "bybit", "okx", "hyperliquid"})

	// Platform policies
	setPlatformDefaults()
}
