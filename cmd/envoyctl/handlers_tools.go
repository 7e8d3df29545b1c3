package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type toolListResponse struct {
	BuiltIn []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"builtIn"`
	Custom []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Enabled     bool   `json:"enabled"`
	} `json:"custom"`
}

func runToolsList(cmd *cobra.Command) error {
	client := newAPIClient(addr)
	var resp toolListResponse
	if err := client.get(cmd.Context(), "/api/v1/tools", &resp); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tENABLED\tDESCRIPTION")
	for _, t := range resp.BuiltIn {
		fmt.Fprintf(w, "%s\tbuilt-in\ttrue\t%s\n", t.Name, t.Description)
	}
	for _, t := range resp.Custom {
		fmt.Fprintf(w, "%s\tcustom\t%t\t%s\n", t.Name, t.Enabled, t.Description)
	}
	return w.Flush()
}

func runToolsDelete(cmd *cobra.Command, name string) error {
	client := newAPIClient(addr)
	if err := client.delete(cmd.Context(), "/api/v1/tools/"+name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted tool %s\n", name)
	return nil
}
