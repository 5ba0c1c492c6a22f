// Package config loads and validates ingestor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Enrich   EnrichConfig   `mapstructure:"enrich"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	DB       DBConfig       `mapstructure:"db"`
	Index    IndexConfig    `mapstructure:"index"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines admin API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ArchiveConfig points at the ROM archive to crawl.
type ArchiveConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// CrawlConfig governs the crawler's concurrency and batching.
type CrawlConfig struct {
	Concurrency       int    `mapstructure:"concurrency"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_seconds"`
	BatchSize         int    `mapstructure:"batch_size"`
	UserAgent         string `mapstructure:"user_agent"`
}

// EnrichConfig governs the enrichment worker pool.
type EnrichConfig struct {
	Workers        int `mapstructure:"workers"`
	BatchSize      int `mapstructure:"batch_size"`
	WorkerDelayMs  int `mapstructure:"worker_delay_ms"`
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
}

// MetadataConfig holds provider credentials for game metadata lookups.
// Absence of ClientID/ClientSecret disables enrichment but not crawling.
type MetadataConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenURL     string `mapstructure:"token_url"`
	QueryURL     string `mapstructure:"query_url"`
}

// DBConfig controls access to the catalog's relational store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// IndexConfig controls access to the search index.
type IndexConfig struct {
	Host    string `mapstructure:"host"`
	APIKey  string `mapstructure:"api_key"`
	IndexID string `mapstructure:"index_id"`
}

// ScheduleConfig locates the scheduler's persisted configuration document.
type ScheduleConfig struct {
	StatePath string `mapstructure:"state_path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Env vars use the INGEST_
// prefix, e.g. INGEST_ARCHIVE_BASE_URL.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.concurrency", 20)
	v.SetDefault("crawl.request_timeout_seconds", 30)
	v.SetDefault("crawl.batch_size", 500)
	v.SetDefault("crawl.user_agent", "romvault-ingestor/0.1")
	v.SetDefault("enrich.workers", 4)
	v.SetDefault("enrich.batch_size", 10)
	v.SetDefault("enrich.worker_delay_ms", 1000)
	v.SetDefault("enrich.poll_interval_ms", 100)
	v.SetDefault("db.max_conns", 25)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("index.index_id", "games")
	v.SetDefault("schedule.state_path", "data/schedule.json")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Archive.BaseURL == "" {
		return fmt.Errorf("archive.base_url is required")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Enrich.Workers <= 0 {
		return fmt.Errorf("enrich.workers must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Index.Host == "" {
		return fmt.Errorf("index.host is required")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// RequestTimeout converts the crawl request timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawl.RequestTimeoutSec) * time.Second
}

// WorkerDelay converts the enrich worker delay into a duration.
func (c Config) WorkerDelay() time.Duration {
	return time.Duration(c.Enrich.WorkerDelayMs) * time.Millisecond
}

// PollInterval converts the enrich poll interval into a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Enrich.PollIntervalMs) * time.Millisecond
}
