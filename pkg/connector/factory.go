// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/config"
)

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	if logger == nil {
		logger = zap.L()
	}
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateWarehouseConnector opens the configured SQL warehouse. It fails for the
// memory driver, which needs no connection.
func (f *ConnectorFactory) CreateWarehouseConnector(ctx context.Context) (DatabaseConnector, error) {
	switch f.cfg.Warehouse.Driver {
	case "sqlite":
		f.logger.Info("Creating SQLite connector")
		conn, err := NewSQLiteConnector(ctx, &f.cfg.Warehouse.SQLite, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite connector: %w", err)
		}
		return conn, nil
	case "postgres":
		f.logger.Info("Creating PostgreSQL connector")
		conn, err := NewPostgresConnector(ctx, &f.cfg.Warehouse.Postgres, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("warehouse driver %q has no database connector", f.cfg.Warehouse.Driver)
	}
}

// CreateSnowflakeConnector creates a new Snowflake connector for the raw source
func (f *ConnectorFactory) CreateSnowflakeConnector(ctx context.Context) (*SnowflakeConnector, error) {
	f.logger.Info("Creating Snowflake connector")

	conn, err := NewSnowflakeConnector(ctx, &f.cfg.Source.Snowflake, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
	}
	return conn, nil
}
