// Package config loads the pricesync configuration from a config file,
// PRICESYNC_ environment variables and built-in defaults.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/pricesync/internal/common"
)

// EnvPrefix is prepended to every environment variable key.
const EnvPrefix = "PRICESYNC"

// Config holds all configuration for the application.
type Config struct {
	Grandline GrandlineConfig `mapstructure:"grandline"`
	Website   WebsiteConfig   `mapstructure:"website"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Matching  MatchingConfig  `mapstructure:"matching"`
}

// GrandlineConfig configures the supplier price API.
type GrandlineConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	BranchID          string        `mapstructure:"branch_id"`
	AgreementID       string        `mapstructure:"agreement_id"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// DatabaseConfig locates the target catalog and the mapping tables.
type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"`
	DSN           string `mapstructure:"dsn"`
	ProductsTable string `mapstructure:"products_table"`
	CodeField     string `mapstructure:"code_field"`
	NameField     string `mapstructure:"name_field"`
	PriceField    string `mapstructure:"price_field"`
}

// MatchingConfig holds the reconciliation thresholds.
type MatchingConfig struct {
	MinCodeSimilarity   float64 `mapstructure:"min_code_similarity"`
	MinNameSimilarity   float64 `mapstructure:"min_name_similarity"`
	AcceptanceThreshold float64 `mapstructure:"acceptance_threshold"`
	SourceLimit         int     `mapstructure:"source_limit"`
}

// WebsiteConfig configures the optional website price API. An empty APIURL
// disables the website sink.
type WebsiteConfig struct {
	APIURL    string        `mapstructure:"api_url"`
	APIKey    string        `mapstructure:"api_key"`
	BatchSize int           `mapstructure:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the website sink is configured.
func (w WebsiteConfig) Enabled() bool {
	return w.APIURL != ""
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration held by v. Defaults are applied for every
// key and PRICESYNC_ environment variables override file values.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.Database.DSN = ExpandPath(cfg.Database.DSN)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so that environment overrides are
// visible to Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("grandline.base_url", "https://api.grandline.ru/api/v1")
	v.SetDefault("grandline.api_key", "")
	v.SetDefault("grandline.branch_id", "")
	v.SetDefault("grandline.agreement_id", "")
	v.SetDefault("grandline.requests_per_second", 5.0)
	v.SetDefault("grandline.timeout", "30s")
	v.SetDefault("grandline.max_retries", 3)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "~/.local/share/pricesync/pricesync.db")
	v.SetDefault("database.products_table", "oc_product")
	v.SetDefault("database.code_field", "model")
	v.SetDefault("database.name_field", "")
	v.SetDefault("database.price_field", "price")

	v.SetDefault("matching.min_code_similarity", 0.6)
	v.SetDefault("matching.min_name_similarity", 0.7)
	v.SetDefault("matching.acceptance_threshold", 0.8)
	v.SetDefault("matching.source_limit", 1000)

	v.SetDefault("website.api_url", "")
	v.SetDefault("website.api_key", "")
	v.SetDefault("website.batch_size", 100)
	v.SetDefault("website.timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: database driver must be 'sqlite3' or 'postgres', got: %s",
			common.ErrInvalidConfig, cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("%w: database dsn (set PRICESYNC_DATABASE_DSN)", common.ErrMissingConfig)
	}
	if cfg.Database.ProductsTable == "" || cfg.Database.CodeField == "" {
		return fmt.Errorf("%w: database products_table and code_field", common.ErrMissingConfig)
	}

	if err := validateUnit("matching.min_code_similarity", cfg.Matching.MinCodeSimilarity); err != nil {
		return err
	}
	if err := validateUnit("matching.min_name_similarity", cfg.Matching.MinNameSimilarity); err != nil {
		return err
	}
	if err := validateUnit("matching.acceptance_threshold", cfg.Matching.AcceptanceThreshold); err != nil {
		return err
	}
	if cfg.Matching.SourceLimit < 0 {
		return fmt.Errorf("%w: matching.source_limit must not be negative", common.ErrInvalidConfig)
	}

	if cfg.Grandline.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: grandline.requests_per_second must be positive", common.ErrInvalidConfig)
	}
	if cfg.Grandline.Timeout <= 0 || cfg.Website.Timeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", common.ErrInvalidConfig)
	}
	if cfg.Grandline.MaxRetries < 1 {
		return fmt.Errorf("%w: grandline.max_retries must be at least 1", common.ErrInvalidConfig)
	}

	if cfg.Website.Enabled() {
		if _, err := url.ParseRequestURI(cfg.Website.APIURL); err != nil {
			return fmt.Errorf("%w: website.api_url: %w", common.ErrInvalidConfig, err)
		}
	}
	if cfg.Website.BatchSize <= 0 {
		return fmt.Errorf("%w: website.batch_size must be positive", common.ErrInvalidConfig)
	}

	if _, err := common.ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	if cfg.Logging.Format != "console" && cfg.Logging.Format != "json" {
		return fmt.Errorf("%w: logging.format must be 'console' or 'json', got: %s",
			common.ErrInvalidConfig, cfg.Logging.Format)
	}

	return nil
}

func validateUnit(key string, value float64) error {
	if value <= 0 || value > 1 {
		return fmt.Errorf("%w: %s must be within (0, 1], got %v", common.ErrInvalidConfig, key, value)
	}
	return nil
}

// RequireGrandline checks the credentials needed to call the supplier API.
func (c *Config) RequireGrandline() error {
	if c.Grandline.APIKey == "" {
		return fmt.Errorf("%w: grandline api key (set PRICESYNC_GRANDLINE_API_KEY)", common.ErrMissingConfig)
	}
	if _, err := url.ParseRequestURI(c.Grandline.BaseURL); err != nil {
		return fmt.Errorf("%w: grandline.base_url: %w", common.ErrInvalidConfig, err)
	}
	return nil
}
