package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type runView struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Result     string  `json:"result"`
	StartedAt  string  `json:"started_at"`
	FinishedAt *string `json:"finished_at,omitempty"`
}

type taskView struct {
	Name    string   `json:"name"`
	Cron    string   `json:"cron"`
	Enabled bool     `json:"enabled"`
	LastRun *runView `json:"lastRun,omitempty"`
}

func runTasksList(cmd *cobra.Command) error {
	client := newAPIClient(addr)
	var tasks []taskView
	if err := client.get(cmd.Context(), "/api/v1/tasks", &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scheduled tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCRON\tENABLED\tLAST STATUS\tLAST RUN")
	for _, t := range tasks {
		status, started := "-", "-"
		if t.LastRun != nil {
			status = t.LastRun.Status
			started = t.LastRun.StartedAt
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", t.Name, t.Cron, t.Enabled, status, started)
	}
	return w.Flush()
}

func runTasksRuns(cmd *cobra.Command, name string, limit int) error {
	client := newAPIClient(addr)
	path := fmt.Sprintf("/api/v1/tasks/%s/runs?limit=%d", name, limit)
	var runs []runView
	if err := client.get(cmd.Context(), path, &runs); err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tFINISHED\tRESULT")
	for _, run := range runs {
		finished := "-"
		if run.FinishedAt != nil {
			finished = *run.FinishedAt
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", run.ID, run.Status, run.StartedAt, finished, run.Result)
	}
	return w.Flush()
}

func runTasksDelete(cmd *cobra.Command, name string) error {
	client := newAPIClient(addr)
	if err := client.delete(cmd.Context(), "/api/v1/tasks/"+name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted task %s\n", name)
	return nil
}
