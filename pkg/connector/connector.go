// pkg/connector/connector.go
package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DatabaseConnector defines the interface for database connectors
type DatabaseConnector interface {
	// DB returns the underlying database connection
	DB() *sqlx.DB

	// Validate verifies the connection and permissions
	Validate(ctx context.Context) error

	// Close closes the connection and releases resources
	Close() error
}

// poolSpec is what a connector needs to open its database/sql pool
type poolSpec struct {
	driver      string
	dsn         string
	name        string
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
	pingTimeout time.Duration
}

// openPool opens, sizes and pings a pool. Zero limits keep the driver defaults.
func openPool(ctx context.Context, spec poolSpec, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open(spec.driver, spec.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", spec.name, err)
	}

	if spec.maxOpen > 0 {
		db.SetMaxOpenConns(spec.maxOpen)
	}
	if spec.maxIdle > 0 {
		db.SetMaxIdleConns(spec.maxIdle)
	}
	if spec.maxLifetime > 0 {
		db.SetConnMaxLifetime(spec.maxLifetime)
	}
	if spec.maxIdleTime > 0 {
		db.SetConnMaxIdleTime(spec.maxIdleTime)
	}

	pingCtx := ctx
	if spec.pingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, spec.pingTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", spec.name, err)
	}

	logPoolStats(logger, spec.name, db)
	return db, nil
}

// logPoolStats logs pool usage at debug level
func logPoolStats(logger *zap.Logger, name string, db *sqlx.DB) {
	stats := db.Stats()
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("openConnections", stats.OpenConnections),
		zap.Int("inUse", stats.InUse),
		zap.Int("maxOpen", stats.MaxOpenConnections),
		zap.Int64("waitCount", stats.WaitCount))
}
