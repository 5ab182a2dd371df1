package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/config"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/report"
)

type appKey struct{}

// errRunFailed makes the process exit non-zero after a report was printed
var errRunFailed = errors.New("one or more datasets failed")

func newRootCmd() *cobra.Command {
	var cfgFile, envFile string

	root := &cobra.Command{
		Use:   "warehouse",
		Short: "Load, check, cleanse and serve the Zenith sales warehouse",
		Long: `warehouse ingests the nine CRM and ERP extracts into the raw store, runs
data-quality checks, cleanses them into the clean store and derives the
analytical views from it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.Load(config.Options{File: cfgFile, EnvFile: envFile, Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			format, err := report.ParseFormat(cfg.Output)
			if err != nil {
				return err
			}
			a := newApp(cfg, logger, report.NewRenderer(cmd.OutOrStdout(), format))
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultConfigFile+" when present)")
	pf.StringVar(&envFile, "env-file", "", "dotenv file (default: ./"+config.DefaultEnvFile+" when present)")
	pf.String("format", "text", "output format (text|json|yaml)")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")
	pf.String("log-format", "console", "log encoding (console|json)")
	pf.String("driver", "sqlite", "warehouse driver (memory|sqlite|postgres)")
	pf.String("sqlite-path", "warehouse.db", "SQLite warehouse file")
	pf.String("source", "dir", "raw extract source (dir|s3|snowflake)")
	pf.String("source-dir", "datasets", "directory holding the extract files")
	pf.Bool("require-resolvers", false, "fail datasets whose resolver dataset is missing")
	pf.String("push-gateway", "", "Prometheus push gateway URL")

	_ = root.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newLoadCmd(),
		newCheckCmd(),
		newCleanseCmd(),
		newRunCmd(),
		newViewCmd(),
		newMigrateCmd(),
		newScheduleCmd(),
		newStatusCmd(),
	)
	return root
}

// withApp runs fn with the command's app and releases its connections afterwards
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a := cmd.Context().Value(appKey{}).(*app)
	defer func() {
		_ = a.logger.Sync()
		if err := a.Close(); err != nil {
			a.logger.Warn("Failed to close connections", zap.Error(err))
		}
	}()
	return fn(cmd.Context(), a)
}
