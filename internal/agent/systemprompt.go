package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/envoyrun/envoy/internal/integrations"
	"github.com/envoyrun/envoy/internal/store"
)

const basePrompt = `You are Envoy, a conversational assistant with access to tools.
Use tools when they help answer the user accurately; otherwise respond directly.
You can extend your own capabilities: write new tools, register integrations,
and schedule recurring tasks for yourself using the tools provided for that
purpose.`

// PromptBuilder assembles the dynamic system prompt described in §4.F: the
// static base prompt plus a live enumeration of custom tools, integrations
// (flagged configured or needing setup), and scheduled tasks. It is rebuilt
// every turn rather than cached, so a tool created mid-conversation is visible
// on the very next step.
type PromptBuilder struct {
	store *store.Store
}

// NewPromptBuilder returns a PromptBuilder backed by st.
func NewPromptBuilder(st *store.Store) *PromptBuilder {
	return &PromptBuilder{store: st}
}

// Build satisfies SystemPromptBuilder.
func (b *PromptBuilder) Build(ctx context.Context) (string, error) {
	var sb strings.Builder
	sb.WriteString(basePrompt)

	tools, err := b.store.ListTools(ctx)
	if err != nil {
		return "", fmt.Errorf("agent: list custom tools for prompt: %w", err)
	}
	if len(tools) > 0 {
		sb.WriteString("\n\nCustom tools you have created:\n")
		for _, t := range tools {
			status := "enabled"
			if !t.Enabled {
				status = "disabled"
			}
			fmt.Fprintf(&sb, "- %s (%s): %s\n", t.Name, status, t.Description)
		}
	}

	ins, err := b.store.ListIntegrations(ctx)
	if err != nil {
		return "", fmt.Errorf("agent: list integrations for prompt: %w", err)
	}
	if len(ins) > 0 {
		sb.WriteString("\nIntegrations:\n")
		for _, in := range ins {
			badge := "needs setup"
			if integrations.Configured(in) {
				badge = "configured"
			}
			if !in.Enabled {
				badge = "disabled"
			}
			fmt.Fprintf(&sb, "- %s (%s): %s\n", in.Name, badge, in.Description)
		}
	}

	tasks, err := b.store.ListTasks(ctx)
	if err != nil {
		return "", fmt.Errorf("agent: list scheduled tasks for prompt: %w", err)
	}
	if len(tasks) > 0 {
		sb.WriteString("\nScheduled tasks:\n")
		for _, t := range tasks {
			status := "enabled"
			if !t.Enabled {
				status = "disabled"
			}
			fmt.Fprintf(&sb, "- %s (%s, %s): %s\n", t.Name, t.Cron, status, t.Description)
		}
	}

	return sb.String(), nil
}
