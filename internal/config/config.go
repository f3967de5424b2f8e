// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/volcanotrek/slotwatch/internal/crawl"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Categories []crawl.Category `mapstructure:"categories"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the worker pool and run lifecycle.
type CrawlerConfig struct {
	Concurrency       int `mapstructure:"concurrency"`
	StartOffsetDays   int `mapstructure:"start_offset_days"`
	WindowDays        int `mapstructure:"window_days"`
	RetryAttempts     int `mapstructure:"retry_attempts"`
	RunTimeoutMinutes int `mapstructure:"run_timeout_minutes"`
}

// UpstreamConfig points at the booking form and bounds each interaction.
type UpstreamConfig struct {
	FormURL             string `mapstructure:"form_url"`
	UserAgent           string `mapstructure:"user_agent"`
	StepDelayMs         int    `mapstructure:"step_delay_ms"`
	QueryTimeoutSeconds int    `mapstructure:"query_timeout_seconds"`
	ProbeTimeoutSeconds int    `mapstructure:"probe_timeout_seconds"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory stores for local development.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for run-completion notifications. An empty
// project selects the in-memory publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ArtifactsConfig controls the Unknown-date DOM archive. An empty bucket
// selects the in-memory store.
type ArtifactsConfig struct {
	ArchiveUnknown bool   `mapstructure:"archive_unknown"`
	GCSBucket      string `mapstructure:"gcs_bucket"`
	Prefix         string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SLOTWATCH")
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
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultCategories returns the two permit products the service was built
// for. Config may override or extend them.
func DefaultCategories() []crawl.Category {
	return []crawl.Category{
		{Slug: "gorilla", Site: "Volcanoes National Park", Product: "Mountain gorillas"},
		{Slug: "golden-monkey", Site: "Volcanoes National Park", Product: "Golden Monkeys"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.concurrency", 12)
	v.SetDefault("crawler.start_offset_days", 1)
	v.SetDefault("crawler.window_days", 60)
	v.SetDefault("crawler.retry_attempts", 1)
	v.SetDefault("crawler.run_timeout_minutes", 30)
	v.SetDefault("upstream.form_url",
		"https://visitrwandabookings.rdb.rw/rdbBooking/tourismpermit_v1/TourismPermit_v1.xhtml")
	v.SetDefault("upstream.user_agent",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("upstream.step_delay_ms", 300)
	v.SetDefault("upstream.query_timeout_seconds", 30)
	v.SetDefault("upstream.probe_timeout_seconds", 15)
	// Keys without a meaningful default still need registering; AutomaticEnv
	// only resolves keys viper already knows about.
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("artifacts.archive_unknown", false)
	v.SetDefault("artifacts.gcs_bucket", "")
	v.SetDefault("artifacts.prefix", "unknown")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.WindowDays <= 0 {
		return fmt.Errorf("crawler.window_days must be > 0")
	}
	if c.Crawler.RetryAttempts < 1 {
		return fmt.Errorf("crawler.retry_attempts must be >= 1")
	}
	if c.Upstream.FormURL == "" {
		return fmt.Errorf("upstream.form_url is required")
	}
	if c.Upstream.QueryTimeoutSeconds <= 0 {
		return fmt.Errorf("upstream.query_timeout_seconds must be > 0")
	}
	slugs := make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Slug == "" || cat.Site == "" || cat.Product == "" {
			return fmt.Errorf("categories entries need slug, site, and product")
		}
		if _, dup := slugs[cat.Slug]; dup {
			return fmt.Errorf("duplicate category slug %q", cat.Slug)
		}
		slugs[cat.Slug] = struct{}{}
	}
	return nil
}

// Category resolves a category by slug.
func (c Config) Category(slug string) (crawl.Category, bool) {
	for _, cat := range c.Categories {
		if cat.Slug == slug {
			return cat, true
		}
	}
	return crawl.Category{}, false
}

// RunTimeout converts the run budget into a duration.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Crawler.RunTimeoutMinutes) * time.Minute
}

// StepDelay converts the inter-step delay into a duration.
func (c Config) StepDelay() time.Duration {
	return time.Duration(c.Upstream.StepDelayMs) * time.Millisecond
}

// QueryTimeout converts the per-query budget into a duration.
func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.Upstream.QueryTimeoutSeconds) * time.Second
}

// ProbeTimeout converts the probe budget into a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Upstream.ProbeTimeoutSeconds) * time.Second
}
