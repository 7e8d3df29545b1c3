package main

import "github.com/spf13/cobra"

func buildTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and manage scheduled tasks",
	}
	cmd.AddCommand(buildTasksListCmd(), buildTasksRunsCmd(), buildTasksDeleteCmd())
	return cmd
}

func buildTasksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled tasks and their last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksList(cmd)
		},
	}
}

func buildTasksRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs <name>",
		Short: "Show run history for a scheduled task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksRuns(cmd, args[0], limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Max number of runs to show (0 for all)")
	return cmd
}

func buildTasksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a scheduled task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksDelete(cmd, args[0])
		},
	}
}
