package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the service health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := app.client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", status.Status)
			if status.EmbeddingModel != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "embedding model: %s\n", status.EmbeddingModel)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "docs indexed: %d\n", status.DocsIndexed)
			return nil
		},
	}
}
