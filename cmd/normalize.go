package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greg-randall/townnews/internal/pipeline"
)

func newNormalizeCmd() *cobra.Command {
	var batch string

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize stored raw documents into article records",
		Long: `Reads raw batches, converts each row into a normalized article, and writes
it once under its source domain. Without --batch every stored batch is
processed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			_, err = runNormalize(cmd.Context(), appInstance, batch)
			return err
		},
	}
	cmd.Flags().StringVar(&batch, "batch", "", "batch directory to process, e.g. 2024-01-01/1704067200")
	return cmd
}

func runNormalize(ctx context.Context, appInstance App, batch string) (pipeline.NormalizeResult, error) {
	result, err := appInstance.Normalize(ctx, batch)
	if err != nil {
		return result, fmt.Errorf("normalize: %w", err)
	}
	totals := result.Totals
	appInstance.GetLogger().Info("normalization finished",
		zap.Int("batches", len(result.Summaries)),
		zap.Int("files", totals.FilesProcessed),
		zap.Int("new", totals.ArticlesNew),
		zap.Int("skipped", totals.ArticlesSkipped),
		zap.Int("non_article", totals.ArticlesSkippedNonArticle),
		zap.Int("errors", totals.Errors),
	)
	return result, nil
}
