package main

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/cleaner"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/config"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/connector"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/converter"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/loader"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/pipeline"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/quality"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/report"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/resolver"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/store"
)

// app holds the components shared by every command
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	conv      *converter.TypeConverter
	factory   *connector.ConnectorFactory
	warehouse store.Warehouse
	renderer  *report.Renderer
	closers   []func() error
}

func newApp(cfg *config.Config, logger *zap.Logger, renderer *report.Renderer) *app {
	convCfg := converter.DefaultConfig()
	convCfg.DefaultTimezone = cfg.Cleansing.Timezone
	return &app{
		cfg:      cfg,
		logger:   logger,
		conv:     converter.NewTypeConverterWithConfig(logger.Named("converter"), convCfg),
		factory:  connector.NewConnectorFactory(cfg, logger),
		renderer: renderer,
	}
}

// Close releases connections in reverse order of opening
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openSQL connects to the configured SQL warehouse and applies migrations when enabled
func (a *app) openSQL(ctx context.Context) (connector.DatabaseConnector, error) {
	conn, err := a.factory.CreateWarehouseConnector(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)

	if a.cfg.Warehouse.AutoMigrate {
		if err := store.Migrate(ctx, conn.DB()); err != nil {
			return nil, err
		}
	}
	return conn, nil
}

// openWarehouse builds the raw and clean store
func (a *app) openWarehouse(ctx context.Context) (store.Warehouse, error) {
	if a.warehouse != nil {
		return a.warehouse, nil
	}
	if a.cfg.Warehouse.Driver == "memory" {
		a.logger.Warn("Using the in-memory warehouse; datasets do not outlive this process")
		a.warehouse = store.NewMemory(a.logger)
		return a.warehouse, nil
	}

	conn, err := a.openSQL(ctx)
	if err != nil {
		return nil, err
	}
	w, err := store.NewSQLWarehouse(conn.DB(), a.conv, a.logger, store.SQLOptions{
		BatchSize:        a.cfg.Warehouse.BatchSize,
		StatementTimeout: a.cfg.Warehouse.StatementTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse: %w", err)
	}
	a.warehouse = w
	return w, nil
}

// openSource builds the configured raw extract source
func (a *app) openSource(ctx context.Context) (loader.Source, error) {
	src := a.cfg.Source
	switch src.Kind {
	case "dir":
		return a.delimited(loader.DirOpener{Dir: src.Dir})
	case "s3":
		opener, err := loader.NewS3Opener(ctx, src.S3)
		if err != nil {
			return nil, err
		}
		return a.delimited(opener)
	case "snowflake":
		conn, err := a.factory.CreateSnowflakeConnector(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		return loader.NewTableSource(conn.DB(), conn.Schema(), a.conv, a.logger, nil)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

func (a *app) delimited(opener loader.Opener) (loader.Source, error) {
	delim, _ := utf8.DecodeRuneInString(a.cfg.Source.Delimiter)
	return loader.NewDelimitedSource(opener, a.conv, a.logger, a.cfg.FileNames(), delim)
}

// substitutions returns the configured category table or the built-in one
func (a *app) substitutions() map[string]string {
	if len(a.cfg.Cleansing.CategorySubstitutions) > 0 {
		return a.cfg.Cleansing.CategorySubstitutions
	}
	return resolver.DefaultCategorySubstitutions()
}

// manager wires the pipeline. withSource is false for commands that never load.
func (a *app) manager(ctx context.Context, withSource bool) (*pipeline.Manager, error) {
	w, err := a.openWarehouse(ctx)
	if err != nil {
		return nil, err
	}

	var ld *loader.Loader
	if withSource {
		src, err := a.openSource(ctx)
		if err != nil {
			return nil, err
		}
		if ld, err = loader.NewLoader(src, w, a.logger); err != nil {
			return nil, err
		}
	}

	dc, err := cleaner.NewDataCleaner(a.logger, a.conv, cleaner.Options{
		Dedup:            a.cfg.DedupPolicies(),
		RequireResolvers: a.cfg.Cleansing.RequireResolvers,
	})
	if err != nil {
		return nil, err
	}

	floor, err := a.cfg.HistoryFloor()
	if err != nil {
		return nil, err
	}
	qopts := quality.DefaultOptions()
	qopts.HistoryFloor = floor
	qopts.SampleLimit = a.cfg.Quality.SampleLimit
	qopts.CategorySubstitutions = a.substitutions()
	engine, err := quality.NewEngine(a.logger, qopts)
	if err != nil {
		return nil, err
	}

	return pipeline.NewManager(w, ld, dc, engine, pipeline.NewMetrics(a.logger), a.logger, pipeline.Options{
		RequireResolvers:      a.cfg.Cleansing.RequireResolvers,
		CategorySubstitutions: a.substitutions(),
		PushGateway:           a.cfg.Metrics.PushGateway,
		PushJob:               a.cfg.Metrics.Job,
	})
}
