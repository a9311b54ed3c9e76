package cmd

import (
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var domainsFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect a new batch and normalize it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			collected, err := runCollect(cmd.Context(), appInstance, domainsFile)
			if err != nil {
				return err
			}
			_, err = runNormalize(cmd.Context(), appInstance, collected.Batch)
			return err
		},
	}
	cmd.Flags().StringVar(&domainsFile, "domains", "", "domains file (overrides collect.domains_file)")
	return cmd
}
