package connector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/config"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLiteConnector opens the embedded single-file warehouse
type SQLiteConnector struct {
	db     *sqlx.DB
	logger *zap.Logger
	path   string
}

// NewSQLiteConnector opens (creating if needed) the SQLite database at cfg.Path
func NewSQLiteConnector(ctx context.Context, cfg *config.SQLiteConfig, logger *zap.Logger) (*SQLiteConnector, error) {
	if cfg == nil {
		return nil, errors.New("sqlite configuration cannot be nil")
	}
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("sqlite-connector")

	path := cfg.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	logger.Info("Opening SQLite warehouse", zap.String("path", path))

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		dsn = path
	}
	// The warehouse is single-writer; one connection also keeps :memory: databases shared
	db, err := openPool(ctx, poolSpec{
		driver:      "sqlite",
		dsn:         dsn,
		name:        "SQLite",
		maxOpen:     1,
		maxIdle:     1,
		pingTimeout: 5 * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &SQLiteConnector{db: db, logger: logger, path: path}, nil
}

// DB returns the underlying database connection
func (c *SQLiteConnector) DB() *sqlx.DB {
	return c.db
}

// Validate checks the database is readable and writable
func (c *SQLiteConnector) Validate(ctx context.Context) error {
	var version string
	if err := c.db.GetContext(ctx, &version, "SELECT sqlite_version()"); err != nil {
		return fmt.Errorf("failed to query SQLite version: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, "CREATE TEMP TABLE IF NOT EXISTS _permission_check (id INTEGER)"); err != nil {
		return fmt.Errorf("permission validation failed: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, "DROP TABLE IF EXISTS temp._permission_check"); err != nil {
		return fmt.Errorf("permission validation failed: %w", err)
	}
	c.logger.Info("SQLite warehouse validated", zap.String("path", c.path), zap.String("version", version))
	return nil
}

// Close closes the database connection
func (c *SQLiteConnector) Close() error {
	c.logger.Info("Closing SQLite warehouse")
	logPoolStats(c.logger, c.path, c.db)
	return c.db.Close()
}
