package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseDialect maps a database/sql driver name to its goose dialect
func gooseDialect(driverName string) (string, error) {
	switch driverName {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "pgx", "postgres":
		return "postgres", nil
	default:
		return "", fmt.Errorf("no migration dialect for driver %q", driverName)
	}
}

// Migrate applies all pending warehouse migrations
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database not opened")
	}
	dialect, err := gooseDialect(db.DriverName())
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the current schema version
func MigrationVersion(ctx context.Context, db *sqlx.DB) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	dialect, err := gooseDialect(db.DriverName())
	if err != nil {
		return 0, err
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, db.DB)
}
