package main

import "github.com/spf13/cobra"

func buildToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and manage the tool catalog",
	}
	cmd.AddCommand(buildToolsListCmd(), buildToolsDeleteCmd())
	return cmd
}

func buildToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and custom tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsList(cmd)
		},
	}
}

func buildToolsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a custom tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsDelete(cmd, args[0])
		},
	}
}
