package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type sessionView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func runSessionsList(cmd *cobra.Command) error {
	client := newAPIClient(addr)
	var sessions []sessionView
	if err := client.get(cmd.Context(), "/api/v1/sessions", &sessions); err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
	for _, sess := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", sess.ID, sess.Title, sess.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runSessionsMessages(cmd *cobra.Command, sessionID string) error {
	client := newAPIClient(addr)
	var messages []messageView
	if err := client.get(cmd.Context(), "/api/v1/sessions/"+sessionID+"/messages", &messages); err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No messages found.")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, msg := range messages {
		fmt.Fprintf(out, "[%s] %s\n%s\n\n", msg.CreatedAt.Format(time.RFC3339), msg.Role, msg.Content)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, sessionID string) error {
	client := newAPIClient(addr)
	if err := client.delete(cmd.Context(), "/api/v1/sessions/"+sessionID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted session %s\n", sessionID)
	return nil
}
