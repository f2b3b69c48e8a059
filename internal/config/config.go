// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	InputPath  string           `mapstructure:"input_path"`
	OutputPath string           `mapstructure:"output_path"`
	Listing    ListingConfig    `mapstructure:"listing"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Export     ExportConfig     `mapstructure:"export"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ListingConfig governs the initial listing-page crawl.
type ListingConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Delay     time.Duration `mapstructure:"delay"`
	UserAgent string        `mapstructure:"user_agent"`
}

// EnrichConfig governs the detail enrichment pipeline.
type EnrichConfig struct {
	MaxConcurrent      int           `mapstructure:"max_concurrent"`
	DelayBeforeRequest time.Duration `mapstructure:"delay_before_request"`
}

// CheckpointConfig controls snapshot persistence during enrichment.
type CheckpointConfig struct {
	Dir      string `mapstructure:"dir"`
	Interval int    `mapstructure:"interval"`
	Keep     int    `mapstructure:"keep"`
}

// HTTPConfig configures outbound HTTP behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ExportConfig controls the tabular export step.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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
	v.SetDefault("input_path", "event_data.json")
	v.SetDefault("output_path", "event_data_detailed.json")
	v.SetDefault("listing.base_url", "https://jerrybase.com/events")
	v.SetDefault("listing.delay", "500ms")
	v.SetDefault("listing.user_agent", "setlist-harvester/1.0 (+https://github.com/pmorrell/setlist-harvester)")
	v.SetDefault("enrich.max_concurrent", 10)
	v.SetDefault("enrich.delay_before_request", "200ms")
	v.SetDefault("checkpoint.dir", "checkpoints")
	v.SetDefault("checkpoint.interval", 500)
	v.SetDefault("checkpoint.keep", 3)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("export.dir", "export")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8089)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Enrich.MaxConcurrent <= 0 {
		return fmt.Errorf("enrich.max_concurrent must be > 0")
	}
	if c.Enrich.DelayBeforeRequest < 0 {
		return fmt.Errorf("enrich.delay_before_request must be >= 0")
	}
	if c.Checkpoint.Interval <= 0 {
		return fmt.Errorf("checkpoint.interval must be > 0")
	}
	if c.Checkpoint.Keep <= 0 {
		return fmt.Errorf("checkpoint.keep must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Listing.BaseURL == "" {
		return fmt.Errorf("listing.base_url must be set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the status server is enabled")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
