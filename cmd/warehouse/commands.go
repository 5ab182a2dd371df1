package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/pipeline"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/store"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/view"
)

func addDatasetFlag(cmd *cobra.Command, datasets *[]string) {
	cmd.Flags().StringSliceVarP(datasets, "dataset", "d", nil, "datasets to process (default: all)")
}

func failedIfAny(results []*pipeline.DatasetResult, ok pipeline.Status) error {
	for _, r := range results {
		if r.Status != ok {
			return errRunFailed
		}
	}
	return nil
}

func newLoadCmd() *cobra.Command {
	var datasets []string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Truncate and reload the raw store from the configured source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := model.ParseKinds(datasets)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				m, err := a.manager(ctx, true)
				if err != nil {
					return err
				}
				results, err := m.LoadRaw(ctx, scope)
				if err != nil {
					return err
				}
				if err := a.renderer.Load(results); err != nil {
					return err
				}
				return failedIfAny(results, pipeline.StatusLoaded)
			})
		},
	}
	addDatasetFlag(cmd, &datasets)
	return cmd
}

func newCheckCmd() *cobra.Command {
	var (
		datasets []string
		stage    string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run data-quality checks against the raw or clean store",
		Example: `  warehouse check --stage raw
  warehouse check --stage clean --dataset crm_customer --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := model.ParseKinds(datasets)
			if err != nil {
				return err
			}
			st, err := model.ParseStage(stage)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				m, err := a.manager(ctx, false)
				if err != nil {
					return err
				}
				rep, err := m.RunQualityChecks(ctx, st, scope)
				if err != nil {
					return err
				}
				return a.renderer.Quality(rep)
			})
		},
	}
	addDatasetFlag(cmd, &datasets)
	cmd.Flags().StringVar(&stage, "stage", "raw", "store to check (raw|clean)")
	return cmd
}

func newCleanseCmd() *cobra.Command {
	var datasets []string
	cmd := &cobra.Command{
		Use:   "cleanse",
		Short: "Rebuild the clean store from the raw store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := model.ParseKinds(datasets)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				m, err := a.manager(ctx, false)
				if err != nil {
					return err
				}
				results, err := m.RunCleansing(ctx, scope)
				if err != nil {
					return err
				}
				if err := a.renderer.Cleansing(results); err != nil {
					return err
				}
				return failedIfAny(results, pipeline.StatusCleansed)
			})
		},
	}
	addDatasetFlag(cmd, &datasets)
	return cmd
}

func newRunCmd() *cobra.Command {
	var datasets []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load, check, cleanse and re-check in one invocation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := model.ParseKinds(datasets)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				m, err := a.manager(ctx, true)
				if err != nil {
					return err
				}
				rep, runErr := m.Run(ctx, scope)
				if err := a.renderer.Run(rep); err != nil {
					return err
				}
				if runErr != nil {
					return runErr
				}
				if !rep.Succeeded() {
					return errRunFailed
				}
				return nil
			})
		},
	}
	addDatasetFlag(cmd, &datasets)
	return cmd
}

func newViewCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "view [name]",
		Short: "Build an analytical view from the clean store",
		Long: `Builds dim_customer, dim_product, dim_store, fact_sales or fact_returns from
the current clean store. Without a name every view is built.`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			names := make([]string, 0, len(view.Names()))
			for _, n := range view.Names() {
				names = append(names, string(n))
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				w, err := a.openWarehouse(ctx)
				if err != nil {
					return err
				}
				b, err := view.NewBuilder(w, a.logger, view.WithCategorySubstitutions(a.substitutions()))
				if err != nil {
					return err
				}

				if len(args) == 1 {
					name, err := view.ParseName(args[0])
					if err != nil {
						return err
					}
					t, err := b.Build(ctx, name)
					if err != nil {
						return err
					}
					return a.renderer.View(t, limit)
				}

				tables, err := b.BuildAll(ctx)
				if err != nil {
					return err
				}
				for _, name := range view.Names() {
					if err := a.renderer.View(tables[name], limit); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows to print (0 for all)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the warehouse schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if a.cfg.Warehouse.Driver == "memory" {
					return fmt.Errorf("the memory warehouse has no schema to migrate")
				}
				a.cfg.Warehouse.AutoMigrate = false
				conn, err := a.openSQL(ctx)
				if err != nil {
					return err
				}
				if err := store.Migrate(ctx, conn.DB()); err != nil {
					return err
				}
				version, err := store.MigrationVersion(ctx, conn.DB())
				if err != nil {
					return err
				}
				a.logger.Info("Warehouse schema is up to date", zap.Int64("version", version))
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
				return nil
			})
		},
	}
}

func newScheduleCmd() *cobra.Command {
	var datasets []string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the full pipeline on a cron schedule until interrupted",
		Example: `  warehouse schedule --cron "0 2 * * *"
  warehouse schedule --cron @hourly --dataset erp_store`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := model.ParseKinds(datasets)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if a.cfg.Schedule.Cron == "" {
					return fmt.Errorf("no schedule: set --cron or schedule.cron")
				}
				m, err := a.manager(ctx, true)
				if err != nil {
					return err
				}
				s, err := pipeline.NewScheduler(m, a.cfg.Schedule.Cron, scope, func(rep *pipeline.RunReport, err error) {
					if rep == nil {
						return
					}
					if rerr := a.renderer.Run(rep); rerr != nil {
						a.logger.Error("Failed to render run report", zap.Error(rerr))
					}
				}, a.logger)
				if err != nil {
					return err
				}
				return s.Run(ctx)
			})
		},
	}
	addDatasetFlag(cmd, &datasets)
	cmd.Flags().String("cron", "", "cron spec (five fields or a descriptor such as @daily)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the load state of every dataset in both stores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				w, err := a.openWarehouse(ctx)
				if err != nil {
					return err
				}
				all := []store.DatasetStatus{}
				for _, st := range []model.Stage{model.StageRaw, model.StageClean} {
					statuses, err := w.Status(ctx, st)
					if err != nil {
						return err
					}
					all = append(all, statuses...)
				}
				return a.renderer.Status(all)
			})
		},
	}
}
