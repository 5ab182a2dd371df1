package connector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/config"
)

func TestSQLiteConnector(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "warehouse.db")

	conn, err := NewSQLiteConnector(ctx, &config.SQLiteConfig{Path: path}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, conn.Validate(ctx))

	assert.Equal(t, "sqlite", conn.DB().DriverName())
	assert.Equal(t, "SELECT 1 WHERE 1 = ?", conn.DB().Rebind("SELECT 1 WHERE 1 = ?"))
	assert.Equal(t, 1, conn.DB().Stats().MaxOpenConnections)
	require.NoError(t, conn.Close())
}

func TestFactoryWarehouseConnector(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{Warehouse: config.WarehouseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "warehouse.db")},
	}}
	conn, err := NewConnectorFactory(cfg, zaptest.NewLogger(t)).CreateWarehouseConnector(ctx)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteConnector{}, conn)
	require.NoError(t, conn.Close())

	cfg.Warehouse.Driver = "memory"
	_, err = NewConnectorFactory(cfg, zaptest.NewLogger(t)).CreateWarehouseConnector(ctx)
	assert.Error(t, err)
}

func TestNilConfig(t *testing.T) {
	ctx := context.Background()
	_, err := NewSQLiteConnector(ctx, nil, nil)
	assert.Error(t, err)
	_, err = NewPostgresConnector(ctx, nil, nil)
	assert.Error(t, err)
	_, err = NewSnowflakeConnector(ctx, nil, nil)
	assert.Error(t, err)
}

func TestOpenPool(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	db, err := openPool(ctx, poolSpec{driver: "sqlite", dsn: ":memory:", name: "SQLite", maxOpen: 3, maxIdle: 2}, logger)
	require.NoError(t, err)
	assert.Equal(t, 3, db.Stats().MaxOpenConnections)
	require.NoError(t, db.Close())

	_, err = openPool(ctx, poolSpec{driver: "no-such-driver", name: "nothing"}, logger)
	assert.ErrorContains(t, err, "failed to open nothing")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = openPool(cancelled, poolSpec{driver: "sqlite", dsn: ":memory:", name: "SQLite", pingTimeout: time.Second}, logger)
	assert.ErrorContains(t, err, "failed to connect to SQLite")
}
