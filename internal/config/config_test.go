package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pricesync/internal/common"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "oc_product", cfg.Database.ProductsTable)
	assert.Equal(t, "model", cfg.Database.CodeField)
	assert.Equal(t, "price", cfg.Database.PriceField)
	assert.NotContains(t, cfg.Database.DSN, "~")

	assert.InDelta(t, 0.6, cfg.Matching.MinCodeSimilarity, 1e-9)
	assert.InDelta(t, 0.7, cfg.Matching.MinNameSimilarity, 1e-9)
	assert.InDelta(t, 0.8, cfg.Matching.AcceptanceThreshold, 1e-9)
	assert.Equal(t, 1000, cfg.Matching.SourceLimit)

	assert.Equal(t, 30*time.Second, cfg.Grandline.Timeout)
	assert.Equal(t, 3, cfg.Grandline.MaxRetries)
	assert.Equal(t, 100, cfg.Website.BatchSize)
	assert.False(t, cfg.Website.Enabled())

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	require.ErrorIs(t, cfg.RequireGrandline(), common.ErrMissingConfig)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PRICESYNC_GRANDLINE_API_KEY", "secret")
	t.Setenv("PRICESYNC_GRANDLINE_TIMEOUT", "5s")
	t.Setenv("PRICESYNC_DATABASE_DRIVER", "postgres")
	t.Setenv("PRICESYNC_DATABASE_DSN", "postgres://localhost/shop?sslmode=disable")
	t.Setenv("PRICESYNC_MATCHING_ACCEPTANCE_THRESHOLD", "0.9")
	t.Setenv("PRICESYNC_WEBSITE_API_URL", "https://shop.example.com/api")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Grandline.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Grandline.Timeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/shop?sslmode=disable", cfg.Database.DSN)
	assert.InDelta(t, 0.9, cfg.Matching.AcceptanceThreshold, 1e-9)
	assert.True(t, cfg.Website.Enabled())
	require.NoError(t, cfg.RequireGrandline())
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  products_table: products
  code_field: sku
  name_field: title
matching:
  source_limit: 250
logging:
  format: json
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "products", cfg.Database.ProductsTable)
	assert.Equal(t, "sku", cfg.Database.CodeField)
	assert.Equal(t, "title", cfg.Database.NameField)
	assert.Equal(t, 250, cfg.Matching.SourceLimit)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		wantErr error
	}{
		{"unknown driver", "database.driver", "oracle", common.ErrInvalidConfig},
		{"empty dsn", "database.dsn", "", common.ErrMissingConfig},
		{"threshold above one", "matching.acceptance_threshold", 1.5, common.ErrInvalidConfig},
		{"negative code similarity", "matching.min_code_similarity", -0.1, common.ErrInvalidConfig},
		{"zero threshold", "matching.acceptance_threshold", 0, common.ErrInvalidConfig},
		{"zero name similarity", "matching.min_name_similarity", 0, common.ErrInvalidConfig},
		{"negative source limit", "matching.source_limit", -1, common.ErrInvalidConfig},
		{"zero rate", "grandline.requests_per_second", 0, common.ErrInvalidConfig},
		{"zero batch", "website.batch_size", 0, common.ErrInvalidConfig},
		{"bad website url", "website.api_url", "not a url", common.ErrInvalidConfig},
		{"bad log level", "logging.level", "verbose", common.ErrInvalidConfig},
		{"bad log format", "logging.format", "xml", common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("PRICESYNC_TEST_DIR", "/var/lib/pricesync")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/data/db.sqlite", filepath.Join(home, "data/db.sqlite")},
		{"$PRICESYNC_TEST_DIR/db.sqlite", "/var/lib/pricesync/db.sqlite"},
		{"/abs/path.db", "/abs/path.db"},
		{"relative/path.db", "relative/path.db"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}
