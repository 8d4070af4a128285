package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cqa",
		Short:         "校园问答 CLI (cqa): query the campus knowledge base from the terminal",
		Long:          "cqa is a terminal client for the campus Q&A service. It streams answers from the campus knowledge base, manages conversation sessions, and handles login and password changes.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAskCmd(app),
		newChatCmd(app),
		newSessionCmd(app),
		newLoginCmd(app),
		newPasswdCmd(app),
		newHealthCmd(app),
	)

	return rootCmd
}
