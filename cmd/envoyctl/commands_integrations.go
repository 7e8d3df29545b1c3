package main

import "github.com/spf13/cobra"

func buildIntegrationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrations",
		Short: "Inspect and configure integrations",
	}
	cmd.AddCommand(
		buildIntegrationsListCmd(),
		buildIntegrationsSetConfigCmd(),
		buildIntegrationsDeleteCmd(),
	)
	return cmd
}

func buildIntegrationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List integrations and their configuration state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntegrationsList(cmd)
		},
	}
}

func buildIntegrationsSetConfigCmd() *cobra.Command {
	var values []string

	cmd := &cobra.Command{
		Use:   "set-config <name>",
		Short: "Set one or more config values for an integration (key=value)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntegrationsSetConfig(cmd, args[0], values)
		},
	}
	cmd.Flags().StringArrayVar(&values, "set", nil, "key=value pair, repeatable")
	return cmd
}

func buildIntegrationsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an integration and its tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntegrationsDelete(cmd, args[0])
		},
	}
}
