package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campusqa/campusqa-cli/internal/adapters/render/plain"
	"github.com/campusqa/campusqa-cli/internal/application"
	"github.com/campusqa/campusqa-cli/internal/domain"
)

func newAskCmd(app *app) *cobra.Command {
	var (
		topK       int
		noStream   bool
		newSession bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the campus knowledge base one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			if err := app.sessions.Restore(ctx); err != nil {
				app.log.Debug().Err(err).Msg("restore session state failed")
			}
			if newSession {
				if _, err := app.sessions.EnsureSession(ctx, true); err != nil {
					return err
				}
			}

			renderer := plain.NewRenderer(cmd.OutOrStdout())
			ctrl := app.newController(renderer)

			opts := app.turnOptions(topK)
			if noStream {
				opts.Streaming = false
			}

			var result application.TurnResult
			run := func(ctx context.Context) error {
				var err error
				result, err = ctrl.Run(ctx, query, opts)
				return err
			}

			if opts.Streaming {
				if err := run(ctx); err != nil {
					return err
				}
			} else {
				if err := runAskSpinner(ctx, cmd.ErrOrStderr(), run); err != nil {
					return err
				}
			}

			return turnError(result)
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "How many knowledge base chunks to retrieve (0 uses the server default)")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the complete answer instead of streaming it")
	cmd.Flags().BoolVar(&newSession, "new", false, "Start a fresh session for this question")

	return cmd
}

// turnError maps a terminal turn state to the command's exit status.
// Cancelled turns already rendered their reason and exit cleanly.
func turnError(result application.TurnResult) error {
	switch result.State {
	case domain.TurnFailed, domain.TurnAuthExpired, domain.TurnPasswordRequired:
		return errors.New(result.Reason)
	default:
		return nil
	}
}
