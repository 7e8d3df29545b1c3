package main

import "github.com/spf13/cobra"

func buildChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one chat turn to the agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, sessionID, args[0])
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to continue (omit to start a new session)")
	return cmd
}
