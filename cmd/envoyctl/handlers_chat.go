package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type chatRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

func runChat(cmd *cobra.Command, sessionID, message string) error {
	client := newAPIClient(addr)

	var resp chatResponse
	err := client.post(cmd.Context(), "/api/v1/chat", chatRequest{SessionID: sessionID, Message: message}, &resp)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "session %s\n\n%s\n", resp.SessionID, resp.Message)
	return nil
}
