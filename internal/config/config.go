// Package config provides configuration management for the catalog pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	apperrors "uitf-catalog/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Assist   AssistConfig   `mapstructure:"assist"`
	Mappings Mappings       `mapstructure:"-"` // Loaded separately
}

// PipelineConfig holds the run parameters threaded through the pipeline
// entry point. Nothing here is read from ambient state by the stages.
type PipelineConfig struct {
	DataDir       string        `mapstructure:"data_dir"`
	PageSize      int           `mapstructure:"page_size"`
	LookbackYears int           `mapstructure:"lookback_years"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	FetchWorkers  int           `mapstructure:"fetch_workers"`
	Queries       []string      `mapstructure:"queries"`
}

// SourcesConfig holds the remote source endpoints.
type SourcesConfig struct {
	ListingURL  string `mapstructure:"listing_url"`
	DetailURL   string `mapstructure:"detail_url"`
	FundInfoURL string `mapstructure:"fund_info_url"`
	SeriesURL   string `mapstructure:"series_url"`
}

// CacheConfig holds fetch-cache configuration.
type CacheConfig struct {
	Backend   string `mapstructure:"backend"` // "disk", "memory", "redis"
	Dir       string `mapstructure:"dir"`
	RedisAddr string `mapstructure:"redis_addr"`
}

// AssistConfig holds the optional override-suggestion assistant settings.
type AssistConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// Mappings holds the data-driven lookup tables used by the pipeline. They
// are configuration, not code, so new banks and overrides can be added
// without touching matching logic.
type Mappings struct {
	// BankWebsites maps a website domain from the detail source to a bank
	// name. Exact string match; unmapped websites leave the bank unresolved.
	BankWebsites map[string]string `mapstructure:"bank_websites"`
	// BankNames maps bulk-source bank names to the canonical bank vocabulary.
	BankNames map[string]string `mapstructure:"bank_names"`
	// Overrides maps an exact Catalog B fund name to a Catalog A symbol.
	// Applied last and unconditionally by the reconciliation engine.
	Overrides map[string]string `mapstructure:"overrides"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/uitfcat"
	}
	return filepath.Join(home, ".config", "uitfcat")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadMappings(configDir, &cfg.Mappings); err != nil {
		return nil, fmt.Errorf("loading mappings.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	home, _ := os.UserHomeDir()
	v.SetDefault("pipeline.data_dir", filepath.Join(home, ".local", "share", "uitfcat"))
	v.SetDefault("pipeline.page_size", 20)
	v.SetDefault("pipeline.lookback_years", 5)
	v.SetDefault("pipeline.fetch_timeout", "30s")
	v.SetDefault("pipeline.fetch_workers", 4)
	v.SetDefault("pipeline.queries", []string{"uitf", "unit investment trust", "peso bond fund", "equity fund philippines"})
	v.SetDefault("sources.listing_url", "https://www.bloomberg.com/markets2/api/search")
	v.SetDefault("sources.detail_url", "https://www.bloomberg.com/markets2/api/security")
	v.SetDefault("sources.fund_info_url", "https://www.uitf.com.ph/daily_navpu_details.php")
	v.SetDefault("sources.series_url", "https://www.bloomberg.com/markets2/api/history")
	v.SetDefault("cache.backend", "disk")
	v.SetDefault("cache.dir", filepath.Join(home, ".cache", "uitfcat"))
	v.SetDefault("assist.enabled", false)
	v.SetDefault("assist.model", "gpt-4o-mini")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and continue with defaults
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func loadMappings(configDir string, mappings *Mappings) error {
	v := viper.New()
	v.SetConfigName("mappings")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := createTemplateMappings(configDir); err != nil {
				return err
			}
			*mappings = DefaultMappings()
			return nil
		}
		return err
	}

	if err := v.Unmarshal(mappings); err != nil {
		return err
	}
	if mappings.BankWebsites == nil {
		mappings.BankWebsites = map[string]string{}
	}
	if mappings.BankNames == nil {
		mappings.BankNames = map[string]string{}
	}
	if mappings.Overrides == nil {
		mappings.Overrides = map[string]string{}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("UITFCAT_DATA_DIR"); v != "" {
		cfg.Pipeline.DataDir = v
	}
	if v := os.Getenv("UITFCAT_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("UITFCAT_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Assist.APIKey = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Pipeline.PageSize <= 0 {
		return apperrors.NewValidationError("pipeline.page_size", c.Pipeline.PageSize, "must be positive")
	}
	if c.Pipeline.LookbackYears <= 0 {
		return apperrors.NewValidationError("pipeline.lookback_years", c.Pipeline.LookbackYears, "must be positive")
	}
	if c.Pipeline.FetchTimeout <= 0 {
		return apperrors.NewValidationError("pipeline.fetch_timeout", c.Pipeline.FetchTimeout, "must be positive")
	}
	if c.Pipeline.FetchWorkers <= 0 {
		return apperrors.NewValidationError("pipeline.fetch_workers", c.Pipeline.FetchWorkers, "must be positive")
	}
	if len(c.Pipeline.Queries) == 0 {
		return apperrors.NewValidationError("pipeline.queries", c.Pipeline.Queries, "at least one search query is required")
	}

	switch c.Cache.Backend {
	case "disk", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return apperrors.NewValidationError("cache.redis_addr", c.Cache.RedisAddr, "required for the redis backend")
		}
	default:
		return apperrors.NewValidationError("cache.backend", c.Cache.Backend, "must be 'disk', 'memory' or 'redis'")
	}

	return nil
}
