// Package config holds the application configuration. Values come from a
// YAML file read by viper, overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/fincrawl/internal/fetcher"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

// Defaults.
const (
	DefaultSourcesFile     = "config/websites.yaml"
	DefaultDatabaseDriver  = "sqlite3"
	DefaultDatabaseDSN     = "./data/news.db"
	DefaultScheduleHour    = 8
	DefaultScheduleMinute  = 0
	DefaultMaxItems        = 50
	DefaultLookbackDays    = 30
	DefaultTimezone        = "Asia/Shanghai"
	DefaultServerAddr      = ":8080"
	DefaultIndex           = "financial_news"
	DefaultRedisChannel    = "fincrawl:articles"
	defaultServerTimeout   = 30 * time.Second
	defaultElasticsearchIP = "http://localhost:9200"
)

// Config is the root configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Logger        logger.Config       `mapstructure:"logger"`
	Crawler       CrawlerConfig       `mapstructure:"crawler"`
	Browser       BrowserConfig       `mapstructure:"browser"`
	Schedule      ScheduleConfig      `mapstructure:"schedule"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Server        ServerConfig        `mapstructure:"server"`
	Sources       SourcesConfig       `mapstructure:"sources"`
}

// AppConfig identifies the running instance.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// CrawlerConfig tunes fetching and extraction.
type CrawlerConfig struct {
	fetcher.Config `mapstructure:",squash"`

	MaxItemsPerSource   int    `mapstructure:"max_items_per_source"`
	LookbackDays        int    `mapstructure:"lookback_days"`
	ReadabilityFallback bool   `mapstructure:"readability_fallback"`
	Timezone            string `mapstructure:"timezone"`
}

// BrowserConfig configures the headless browser used by browser-driven sources.
type BrowserConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Headless bool   `mapstructure:"headless"`
	Bin      string `mapstructure:"bin"`
}

// ScheduleConfig is the daily run time, local to the process.
type ScheduleConfig struct {
	Hour   int `mapstructure:"hour"`
	Minute int `mapstructure:"minute"`
}

// DatabaseConfig selects the article store.
type DatabaseConfig struct {
	// Driver is sqlite3 or postgres.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ElasticsearchConfig configures the search index sink.
type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// RedisConfig configures the pub/sub sink.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// ServerConfig configures the status/metrics HTTP server.
type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SourcesConfig points at the websites file.
type SourcesConfig struct {
	File string `mapstructure:"file"`
}

// SetDefaults registers defaults on v. Values set here lose to the config
// file and to environment variables.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fincrawl")
	v.SetDefault("app.environment", "development")
	v.SetDefault("logger.level", logger.DefaultLevel)
	v.SetDefault("crawler.timeout", "30s")
	v.SetDefault("crawler.retry_times", 3)
	v.SetDefault("crawler.retry_delay", "1s")
	v.SetDefault("crawler.max_items_per_source", DefaultMaxItems)
	v.SetDefault("crawler.lookback_days", DefaultLookbackDays)
	v.SetDefault("crawler.timezone", DefaultTimezone)
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("schedule.hour", DefaultScheduleHour)
	v.SetDefault("schedule.minute", DefaultScheduleMinute)
	v.SetDefault("database.driver", DefaultDatabaseDriver)
	v.SetDefault("database.dsn", DefaultDatabaseDSN)
	v.SetDefault("elasticsearch.index", DefaultIndex)
	v.SetDefault("redis.channel", DefaultRedisChannel)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("sources.file", DefaultSourcesFile)
}

// BindEnv maps the supported environment variables onto config keys.
// AutomaticEnv covers the rest through the "." to "_" replacer.
func BindEnv(v *viper.Viper) error {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindings := map[string]string{
		"logger.level":            "LOG_LEVEL",
		"database.driver":         "DATABASE_DRIVER",
		"database.dsn":            "DATABASE_DSN",
		"elasticsearch.addresses": "ELASTICSEARCH_ADDRESSES",
		"redis.addr":              "REDIS_ADDR",
		"sources.file":            "SOURCES_FILE",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// Load unmarshals v, applies defaults and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WithDefaults fills zero values. It lets a Config built in code behave like
// one loaded through viper.
func (c *Config) WithDefaults() {
	if c.App.Name == "" {
		c.App.Name = "fincrawl"
	}
	if c.App.Debug {
		c.Logger.Level = "debug"
		c.Logger.Development = true
	}
	c.Logger.SetDefaults()
	c.Crawler.Config = c.Crawler.Config.WithDefaults()
	if c.Crawler.MaxItemsPerSource <= 0 {
		c.Crawler.MaxItemsPerSource = DefaultMaxItems
	}
	if c.Crawler.LookbackDays <= 0 {
		c.Crawler.LookbackDays = DefaultLookbackDays
	}
	if c.Crawler.Timezone == "" {
		c.Crawler.Timezone = DefaultTimezone
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}
	if c.Database.DSN == "" && c.Database.Driver == DefaultDatabaseDriver {
		c.Database.DSN = DefaultDatabaseDSN
	}
	c.Elasticsearch.Addresses = splitAddresses(c.Elasticsearch.Addresses)
	if c.Elasticsearch.Enabled && len(c.Elasticsearch.Addresses) == 0 {
		c.Elasticsearch.Addresses = []string{defaultElasticsearchIP}
	}
	if c.Elasticsearch.Index == "" {
		c.Elasticsearch.Index = DefaultIndex
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = DefaultRedisChannel
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = defaultServerTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = defaultServerTimeout
	}
	if c.Sources.File == "" {
		c.Sources.File = DefaultSourcesFile
	}
}

// splitAddresses accepts both a YAML list and a comma-separated env value.
func splitAddresses(in []string) []string {
	var out []string
	for _, a := range in {
		for part := range strings.SplitSeq(a, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 {
		return fmt.Errorf("schedule.hour must be 0-23, got %d", c.Schedule.Hour)
	}
	if c.Schedule.Minute < 0 || c.Schedule.Minute > 59 {
		return fmt.Errorf("schedule.minute must be 0-59, got %d", c.Schedule.Minute)
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	if _, err := time.LoadLocation(c.Crawler.Timezone); err != nil {
		return fmt.Errorf("crawler.timezone: %w", err)
	}
	return nil
}

// Location returns the configured crawler timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Crawler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
