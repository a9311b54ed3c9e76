// Package cmd defines the townnews command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greg-randall/townnews/internal/app"
	"github.com/greg-randall/townnews/internal/collector"
	"github.com/greg-randall/townnews/internal/config"
	"github.com/greg-randall/townnews/internal/logging"
	"github.com/greg-randall/townnews/internal/pipeline"
)

type appKeyType string

const appKey appKeyType = "app"

// App is the set of services the subcommands use.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	Collect(ctx context.Context, targets []collector.Target) (pipeline.CollectResult, error)
	Normalize(ctx context.Context, batch string) (pipeline.NormalizeResult, error)
}

// newApp is replaced in tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "townnews",
		Short: "Collect and normalize articles from TownNews-hosted news sites.",
		Long: `townnews fetches the JSON search feed of each configured TownNews site,
stores the raw documents in timestamped batches, and normalizes them into
deduplicated per-article records.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("initialize services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
				_ = appInstance.GetLogger().Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and TOWNNEWS_* environment only when empty)")

	cmd.AddCommand(newCollectCmd(), newNormalizeCmd(), newRunCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
