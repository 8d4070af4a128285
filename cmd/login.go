package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd(app *app) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the campus Q&A service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if username == "" {
				var err error
				username, err = readLine(cmd, "用户名: ")
				if err != nil {
					return err
				}
			}
			if username == "" {
				return errors.New("username is empty")
			}

			password, err := readPassword(cmd, "密码: ")
			if err != nil {
				return err
			}

			result, err := app.client.Login(ctx, username, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			if err := app.tokens.Put(ctx, result.Token); err != nil {
				return fmt.Errorf("store token: %w", err)
			}

			state, err := app.state.Load(ctx)
			if err != nil {
				app.log.Debug().Err(err).Msg("load client state failed")
			}
			state.LastUsername = username
			state.MustChangePassword = result.MustChangePassword
			if err := app.state.Save(ctx, state); err != nil {
				app.log.Debug().Err(err).Msg("persist client state failed")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "登录成功（%s）\n", username)
			if result.MustChangePassword {
				fmt.Fprintln(cmd.OutOrStdout(), "首次登录需修改初始密码，请运行 cqa passwd")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "Username")

	return cmd
}

func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// readPassword reads without echo on a terminal and falls back to plain
// line input when stdin is a pipe.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if stdin, ok := cmd.InOrStdin().(*os.File); ok {
		fd := int(stdin.Fd())
		if term.IsTerminal(fd) {
			fmt.Fprint(cmd.OutOrStdout(), prompt)
			raw, err := term.ReadPassword(fd)
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return "", fmt.Errorf("read password: %w", err)
			}
			return string(raw), nil
		}
	}

	return readLine(cmd, prompt)
}
