package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campusqa/campusqa-cli/internal/domain"
)

const emptyHistoryNotice = "（空会话，还没有消息）"

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage conversation sessions",
	}

	cmd.AddCommand(
		newSessionListCmd(app),
		newSessionNewCmd(app),
		newSessionRenameCmd(app),
		newSessionRmCmd(app),
		newSessionHistoryCmd(app),
	)

	return cmd
}

func newSessionListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions on the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			restoreSessions(app, cmd)

			summaries, err := app.sessions.RefreshSessions(ctx)
			if err != nil {
				return err
			}

			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "还没有会话")
				return nil
			}

			active := app.sessions.ActiveSession()
			for _, summary := range summaries {
				marker := " "
				if summary.ID == active {
					marker = "*"
				}
				title := summary.Title
				if title == "" {
					title = "（未命名）"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s  %d 条消息  %s\n",
					marker, summary.ID, title, summary.MessageCount,
					summary.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newSessionNewCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new [title]",
		Short: "Create a session and make it active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			restoreSessions(app, cmd)

			title := ""
			if len(args) == 1 {
				title = args[0]
			}

			summary, err := app.sessions.CreateSession(ctx, title)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "已创建会话 %s\n", summary.ID)
			return nil
		},
	}
}

func newSessionRenameCmd(app *app) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "rename <title>",
		Short: "Rename a session (the active one unless --id is given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			restoreSessions(app, cmd)

			id, err := resolveSessionID(app, sessionID)
			if err != nil {
				return err
			}

			summary, err := app.sessions.RenameSession(ctx, id, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "会话 %s 已重命名为「%s」\n", summary.ID, summary.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "id", "", "Session ID (defaults to the active session)")

	return cmd
}

func newSessionRmCmd(app *app) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete a session (the active one unless --id is given)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			restoreSessions(app, cmd)

			id, err := resolveSessionID(app, sessionID)
			if err != nil {
				return err
			}

			replacement, err := app.sessions.DeleteSession(ctx, id)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "已删除会话 %s\n", id)
			if replacement != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "已切换到新会话 %s\n", replacement.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "id", "", "Session ID (defaults to the active session)")

	return cmd
}

func newSessionHistoryCmd(app *app) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the message history of a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			restoreSessions(app, cmd)

			var history domain.SessionHistory
			var err error
			if sessionID != "" {
				history, err = app.sessions.SwitchSession(ctx, domain.SessionID(sessionID))
			} else {
				history, err = app.sessions.LoadHistory(ctx)
			}
			if err != nil {
				return err
			}

			printHistory(cmd, history)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "id", "", "Session ID (defaults to the active session)")

	return cmd
}

func printHistory(cmd *cobra.Command, history domain.SessionHistory) {
	if len(history.Messages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), emptyHistoryNotice)
		return
	}

	for _, message := range history.Messages {
		label := "助手"
		if message.Role == domain.RoleUser {
			label = "你"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", label, strings.TrimSpace(message.Content))
	}
}

func resolveSessionID(app *app, flagValue string) (domain.SessionID, error) {
	if flagValue != "" {
		return domain.SessionID(flagValue), nil
	}

	active := app.sessions.ActiveSession()
	if active == "" {
		return "", domain.ErrNoActiveSession
	}
	return active, nil
}

func restoreSessions(app *app, cmd *cobra.Command) {
	if err := app.sessions.Restore(cmd.Context()); err != nil {
		app.log.Debug().Err(err).Msg("restore session state failed")
	}
}
