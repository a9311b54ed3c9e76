package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greg-randall/townnews/internal/collector"
	"github.com/greg-randall/townnews/internal/pipeline"
	"github.com/greg-randall/townnews/internal/targets"
)

func newCollectCmd() *cobra.Command {
	var domainsFile string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch the search feed of every configured site",
		Long: `Visits each domain listed in the domains file, extracts the JSON search
document from the rendered page, and writes it into a new raw batch together
with a collection summary.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			_, err = runCollect(cmd.Context(), appInstance, domainsFile)
			return err
		},
	}
	cmd.Flags().StringVar(&domainsFile, "domains", "", "domains file (overrides collect.domains_file)")
	return cmd
}

func runCollect(ctx context.Context, appInstance App, domainsFile string) (pipeline.CollectResult, error) {
	logger := appInstance.GetLogger()
	if domainsFile == "" {
		domainsFile = appInstance.GetConfig().Collect.DomainsFile
	}

	domains, err := targets.Load(domainsFile)
	if err != nil {
		return pipeline.CollectResult{}, fmt.Errorf("load domains: %w", err)
	}
	logger.Info("collection starting", zap.String("domains_file", domainsFile), zap.Int("targets", len(domains)))

	result, err := appInstance.Collect(ctx, collector.NewTargets(domains))
	if err != nil {
		return result, fmt.Errorf("collect: %w", err)
	}

	stats := result.Summary.Statistics
	logger.Info("collection finished",
		zap.String("batch", result.Batch),
		zap.String("summary", result.SummaryPath),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
	)
	return result, nil
}
