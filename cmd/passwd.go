package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

const minPasswordLength = 6

func newPasswdCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			newPassword, err := readPassword(cmd, "新密码: ")
			if err != nil {
				return err
			}
			if len(newPassword) < minPasswordLength {
				return fmt.Errorf("password must be at least %d characters", minPasswordLength)
			}

			confirm, err := readPassword(cmd, "再次输入新密码: ")
			if err != nil {
				return err
			}
			if newPassword != confirm {
				return errors.New("passwords do not match")
			}

			if err := app.client.ChangePassword(ctx, newPassword); err != nil {
				return fmt.Errorf("change password: %w", err)
			}

			state, err := app.state.Load(ctx)
			if err != nil {
				app.log.Debug().Err(err).Msg("load client state failed")
			}
			state.MustChangePassword = false
			if err := app.state.Save(ctx, state); err != nil {
				app.log.Debug().Err(err).Msg("persist client state failed")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "密码已修改")
			return nil
		},
	}
}
