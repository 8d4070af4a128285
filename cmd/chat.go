package cmd

import (
	"github.com/spf13/cobra"

	"github.com/campusqa/campusqa-cli/internal/adapters/render/chat"
)

func newChatCmd(app *app) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if err := app.sessions.Restore(ctx); err != nil {
				app.log.Debug().Err(err).Msg("restore session state failed")
			}
			if _, err := app.sessions.EnsureSession(ctx, false); err != nil {
				return err
			}

			renderer := chat.NewRenderer()
			ctrl := app.newController(renderer)

			return chat.Run(ctx, ctrl, app.sessions, renderer, app.turnOptions(topK))
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "How many knowledge base chunks to retrieve (0 uses the server default)")

	return cmd
}
