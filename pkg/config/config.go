// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

// Config represents the application configuration
type Config struct {
	Warehouse WarehouseConfig `koanf:"warehouse"`
	Source    SourceConfig    `koanf:"source"`
	Cleansing CleansingConfig `koanf:"cleansing"`
	Quality   QualityConfig   `koanf:"quality"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Logging   LoggingConfig   `koanf:"logging"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	Output    string          `koanf:"format" validate:"oneof=text json yaml"`
}

// WarehouseConfig selects where the raw and clean stores live
type WarehouseConfig struct {
	Driver           string         `koanf:"driver" validate:"oneof=memory sqlite postgres"`
	BatchSize        int            `koanf:"batch_size" validate:"gt=0"`
	StatementTimeout time.Duration  `koanf:"statement_timeout" validate:"gte=0"`
	AutoMigrate      bool           `koanf:"auto_migrate"`
	SQLite           SQLiteConfig   `koanf:"sqlite"`
	Postgres         PostgresConfig `koanf:"postgres"`
}

// SourceConfig selects where raw extracts are read from
type SourceConfig struct {
	Kind      string            `koanf:"kind" validate:"oneof=dir s3 snowflake"`
	Dir       string            `koanf:"dir" validate:"required_if=Kind dir"`
	Delimiter string            `koanf:"delimiter" validate:"len=1"`
	Files     map[string]string `koanf:"files"`
	S3        S3Config          `koanf:"s3"`
	Snowflake SnowflakeConfig   `koanf:"snowflake"`
}

// CleansingConfig holds the cleansing engine's policies
type CleansingConfig struct {
	RequireResolvers      bool                         `koanf:"require_resolvers"`
	Timezone              string                       `koanf:"timezone"`
	Dedup                 map[string]model.DedupPolicy `koanf:"dedup"`
	CategorySubstitutions map[string]string            `koanf:"category_substitutions"`
}

// QualityConfig holds check thresholds
type QualityConfig struct {
	HistoryFloor string `koanf:"history_floor" validate:"omitempty,datetime=2006-01-02"`
	SampleLimit  int    `koanf:"sample_limit" validate:"gt=0"`
}

// MetricsConfig configures the optional push gateway
type MetricsConfig struct {
	PushGateway string `koanf:"push_gateway" validate:"omitempty,url"`
	Job         string `koanf:"job"`
}

// LoggingConfig configures the process logger
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// ScheduleConfig configures recurring runs
type ScheduleConfig struct {
	Cron string `koanf:"cron"`
}

// Defaults returns the flattened default configuration loaded before any file
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"format":                                "text",
		"warehouse.driver":                      "sqlite",
		"warehouse.batch_size":                  500,
		"warehouse.statement_timeout":           "0s",
		"warehouse.auto_migrate":                true,
		"warehouse.sqlite.path":                 "warehouse.db",
		"warehouse.postgres.host":               "localhost",
		"warehouse.postgres.port":               5432,
		"warehouse.postgres.sslmode":            "disable",
		"warehouse.postgres.max_open_conns":     25,
		"warehouse.postgres.max_idle_conns":     10,
		"warehouse.postgres.conn_max_lifetime":  "30m",
		"warehouse.postgres.conn_max_idle_time": "10m",
		"source.kind":                           "dir",
		"source.dir":                            "datasets",
		"source.delimiter":                      ",",
		"source.s3.region":                      "us-east-1",
		"source.snowflake.authenticator":        "snowflake",
		"source.snowflake.schema":               "STAGING",
		"source.snowflake.max_open_conns":       10,
		"source.snowflake.max_idle_conns":       5,
		"source.snowflake.conn_max_lifetime":    "10m",
		"source.snowflake.conn_max_idle_time":   "5m",
		"source.snowflake.query_timeout":        "5m",
		"cleansing.require_resolvers":           false,
		"cleansing.timezone":                    "UTC",
		"quality.history_floor":                 "2020-01-01",
		"quality.sample_limit":                  20,
		"metrics.job":                           "zenith_warehouse",
		"logging.level":                         "info",
		"logging.format":                        "console",
	}
}

var validate = validator.New()

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Warehouse.Driver {
	case "sqlite":
		if err := c.Warehouse.SQLite.Validate(); err != nil {
			return err
		}
	case "postgres":
		if err := c.Warehouse.Postgres.Validate(); err != nil {
			return err
		}
	}

	switch c.Source.Kind {
	case "s3":
		if err := c.Source.S3.Validate(); err != nil {
			return err
		}
	case "snowflake":
		if err := c.Source.Snowflake.Validate(); err != nil {
			return err
		}
	}

	for name, policy := range c.Cleansing.Dedup {
		if _, ok := model.Lookup(model.Kind(name)); !ok {
			return fmt.Errorf("cleansing.dedup: unknown dataset %q", name)
		}
		switch policy.Strategy {
		case model.DedupFirst:
		case model.DedupLatest:
			if policy.Field == "" {
				return fmt.Errorf("cleansing.dedup.%s: latest strategy needs a field", name)
			}
		default:
			return fmt.Errorf("cleansing.dedup.%s: unknown strategy %q", name, policy.Strategy)
		}
	}

	for name := range c.Source.Files {
		if _, ok := model.Lookup(model.Kind(name)); !ok {
			return fmt.Errorf("source.files: unknown dataset %q", name)
		}
	}
	return nil
}

// DedupPolicies returns the configured per-dataset dedup overrides
func (c *Config) DedupPolicies() map[model.Kind]model.DedupPolicy {
	out := make(map[model.Kind]model.DedupPolicy, len(c.Cleansing.Dedup))
	for name, p := range c.Cleansing.Dedup {
		out[model.Kind(strings.ToLower(name))] = p
	}
	return out
}

// FileNames returns the extract file for every dataset, applying overrides
func (c *Config) FileNames() map[model.Kind]string {
	out := make(map[model.Kind]string)
	for _, kind := range model.AllKinds() {
		out[kind] = model.MustLookup(kind).FileName
	}
	for name, file := range c.Source.Files {
		out[model.Kind(name)] = file
	}
	return out
}

// HistoryFloor parses the configured earliest acceptable order date
func (c *Config) HistoryFloor() (time.Time, error) {
	if c.Quality.HistoryFloor == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", c.Quality.HistoryFloor)
	if err != nil {
		return time.Time{}, fmt.Errorf("quality.history_floor: %w", err)
	}
	return t, nil
}
