package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type integrationView struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Enabled      bool           `json:"enabled"`
	Tools        []string       `json:"tools"`
	Configured   bool           `json:"configured"`
	MaskedValues map[string]any `json:"masked_values"`
}

func runIntegrationsList(cmd *cobra.Command) error {
	client := newAPIClient(addr)
	var integrations []integrationView
	if err := client.get(cmd.Context(), "/api/v1/integrations", &integrations); err != nil {
		return err
	}
	if len(integrations) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No integrations found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENABLED\tCONFIGURED\tTOOLS")
	for _, in := range integrations {
		fmt.Fprintf(w, "%s\t%t\t%t\t%s\n", in.Name, in.Enabled, in.Configured, strings.Join(in.Tools, ","))
	}
	return w.Flush()
}

func runIntegrationsSetConfig(cmd *cobra.Command, name string, pairs []string) error {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --set value %q, expected key=value", pair)
		}
		values[key] = value
	}

	client := newAPIClient(addr)
	var resp struct {
		Configured   bool           `json:"configured"`
		MaskedValues map[string]any `json:"masked_values"`
	}
	if err := client.post(cmd.Context(), "/api/v1/integrations/"+name+"/config", values, &resp); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "configured: %t\n", resp.Configured)
	for key, value := range resp.MaskedValues {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", key, value)
	}
	return nil
}

func runIntegrationsDelete(cmd *cobra.Command, name string) error {
	client := newAPIClient(addr)
	if err := client.delete(cmd.Context(), "/api/v1/integrations/"+name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted integration %s\n", name)
	return nil
}
