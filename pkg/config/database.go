// pkg/config/database.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"
)

// SQLiteConfig holds the embedded warehouse location
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// SnowflakeConfig holds Snowflake connection parameters for the staging source
type SnowflakeConfig struct {
	User          string `koanf:"user"`
	Password      string `koanf:"password"`
	Account       string `koanf:"account"`
	Warehouse     string `koanf:"warehouse"`
	Database      string `koanf:"database"`
	Schema        string `koanf:"schema"` // Staging schema holding one table per dataset
	Role          string `koanf:"role"`
	Authenticator string `koanf:"authenticator"`

	// Connection pool settings
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`

	// Query timeout
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	SSLMode  string `koanf:"sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`

	// Statement timeout
	StatementTimeout time.Duration `koanf:"statement_timeout"`
}

// S3Config locates extracts in an object store bucket
type S3Config struct {
	Bucket       string `koanf:"bucket"`
	Prefix       string `koanf:"prefix"`
	Region       string `koanf:"region"`
	Endpoint     string `koanf:"endpoint"`
	UsePathStyle bool   `koanf:"use_path_style"`
}

// Validate checks the SQLite settings
func (c *SQLiteConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return errors.New("warehouse.sqlite.path is required")
	}
	return nil
}

// Validate checks the PostgreSQL settings
func (c *PostgresConfig) Validate() error {
	if c.User == "" {
		return errors.New("warehouse.postgres.user is required")
	}
	if c.Database == "" {
		return errors.New("warehouse.postgres.database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("warehouse.postgres.port %d is out of range", c.Port)
	}
	return nil
}

// Validate checks the Snowflake settings
func (c *SnowflakeConfig) Validate() error {
	if c.User == "" {
		return errors.New("source.snowflake.user is required")
	}
	if c.Account == "" {
		return errors.New("source.snowflake.account is required")
	}
	if c.Warehouse == "" {
		return errors.New("source.snowflake.warehouse is required")
	}
	if c.Database == "" {
		return errors.New("source.snowflake.database is required")
	}
	if c.AuthType() == gosnowflake.AuthTypeSnowflake && c.Password == "" {
		return errors.New("source.snowflake.password is required")
	}
	return nil
}

// Validate checks the S3 settings
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("source.s3.bucket is required")
	}
	if c.Region == "" {
		return errors.New("source.s3.region is required")
	}
	return nil
}

// AuthType converts the configured authenticator name
func (c *SnowflakeConfig) AuthType() gosnowflake.AuthType {
	switch strings.ToLower(c.Authenticator) {
	case "oauth":
		return gosnowflake.AuthTypeOAuth
	case "externalbrowser":
		return gosnowflake.AuthTypeExternalBrowser
	case "username_password_mfa":
		return gosnowflake.AuthTypeUsernamePasswordMFA
	case "jwt":
		return gosnowflake.AuthTypeJwt
	case "token":
		return gosnowflake.AuthTypeTokenAccessor
	case "okta":
		return gosnowflake.AuthTypeOkta
	default:
		return gosnowflake.AuthTypeSnowflake
	}
}

// DriverConfig returns the gosnowflake settings for building a DSN
func (c *SnowflakeConfig) DriverConfig() *gosnowflake.Config {
	return &gosnowflake.Config{
		Account:       c.Account,
		User:          c.User,
		Password:      c.Password,
		Database:      c.Database,
		Schema:        c.Schema,
		Warehouse:     c.Warehouse,
		Role:          c.Role,
		Authenticator: c.AuthType(),
	}
}

// ConnectionString returns a formatted PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}
