package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Warehouse.Driver)
	assert.Equal(t, "warehouse.db", cfg.Warehouse.SQLite.Path)
	assert.Equal(t, 500, cfg.Warehouse.BatchSize)
	assert.Equal(t, "dir", cfg.Source.Kind)
	assert.Equal(t, ",", cfg.Source.Delimiter)
	assert.Equal(t, 20, cfg.Quality.SampleLimit)
	assert.Equal(t, "text", cfg.Output)
	assert.Equal(t, 30*time.Minute, cfg.Warehouse.Postgres.ConnMaxLifetime)

	floor, err := cfg.HistoryFloor()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), floor)

	files := cfg.FileNames()
	assert.Equal(t, "cust_info.csv", files[model.KindCustomer])
	assert.Len(t, files, 9)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, "warehouse.yaml", `
warehouse:
  driver: memory
source:
  dir: /data/extracts
  files:
    erp_store: stores_2025.csv
cleansing:
  require_resolvers: true
  dedup:
    erp_spatial:
      strategy: first
    crm_customer:
      strategy: latest
      field: birth_date
logging:
  level: debug
`)
	t.Setenv("WAREHOUSE_SOURCE__DIR", "/env/extracts")
	t.Setenv("WAREHOUSE_LOGGING__LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("format", "text", "")
	flags.StringSlice("dataset", nil, "")
	require.NoError(t, flags.Parse([]string{"--log-level", "error", "--dataset", "erp_store"}))

	cfg, err := Load(Options{File: path, Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Warehouse.Driver, "file overrides defaults")
	assert.Equal(t, "/env/extracts", cfg.Source.Dir, "env overrides file")
	assert.Equal(t, "error", cfg.Logging.Level, "flags override env")
	assert.Equal(t, "text", cfg.Output, "unset flags do not override")
	assert.True(t, cfg.Cleansing.RequireResolvers)
	assert.Equal(t, "stores_2025.csv", cfg.FileNames()[model.KindStore])

	policies := cfg.DedupPolicies()
	assert.Equal(t, model.DedupPolicy{Strategy: model.DedupLatest, Field: "birth_date"}, policies[model.KindCustomer])
	assert.Equal(t, model.DedupFirst, policies[model.KindSpatial].Strategy)
}

func TestLoadEnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "WAREHOUSE_QUALITY__SAMPLE_LIMIT=7\n")
	t.Cleanup(func() { _ = os.Unsetenv("WAREHOUSE_QUALITY__SAMPLE_LIMIT") })

	cfg, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Quality.SampleLimit)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(Options{})
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"unknown driver", func(c *Config) { c.Warehouse.Driver = "oracle" }, "Driver"},
		{"bad delimiter", func(c *Config) { c.Source.Delimiter = ";;" }, "Delimiter"},
		{"postgres needs user", func(c *Config) {
			c.Warehouse.Driver = "postgres"
			c.Warehouse.Postgres.Database = "dw"
		}, "warehouse.postgres.user"},
		{"s3 needs bucket", func(c *Config) { c.Source.Kind = "s3" }, "source.s3.bucket"},
		{"snowflake needs account", func(c *Config) {
			c.Source.Kind = "snowflake"
			c.Source.Snowflake.User = "etl"
		}, "source.snowflake.account"},
		{"unknown dedup dataset", func(c *Config) {
			c.Cleansing.Dedup = map[string]model.DedupPolicy{"crm_orders": {Strategy: model.DedupFirst}}
		}, "unknown dataset"},
		{"latest needs field", func(c *Config) {
			c.Cleansing.Dedup = map[string]model.DedupPolicy{"crm_customer": {Strategy: model.DedupLatest}}
		}, "needs a field"},
		{"bad history floor", func(c *Config) { c.Quality.HistoryFloor = "01/01/2020" }, "HistoryFloor"},
		{"bad push gateway", func(c *Config) { c.Metrics.PushGateway = "not a url" }, "PushGateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(LoggingConfig{Level: "loud", Format: "console"})
	assert.Error(t, err)
}
