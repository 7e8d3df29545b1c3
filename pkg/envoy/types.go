// Package envoy holds the domain types shared across Envoy's components: sessions,
// messages, conversation-state parts, tools, integrations, scheduled tasks, and the
// events the bus fans out.
package envoy

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a transcript Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Session is the identity of one conversation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	defaultTitle    = "New chat"
	maxTitleRunes   = 40
	titleTruncation = "…"
)

// TitleFromMessage derives a session title from the first user message, truncating
// to maxTitleRunes with a trailing ellipsis when longer.
func TitleFromMessage(content string) string {
	r := []rune(content)
	if len(r) == 0 {
		return defaultTitle
	}
	if len(r) <= maxTitleRunes {
		return string(r)
	}
	return string(r[:maxTitleRunes]) + titleTruncation
}

// Message is a transcript row: a human-readable log line for UI history rendering.
// It is not authoritative for model replay — ConversationState is.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PartKind distinguishes the polymorphic entries of an assistant or tool turn.
type PartKind string

const (
	PartText       PartKind = "text"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

// Part is one entry of an assistant or tool turn in ConversationState. Only the
// fields relevant to Kind are populated.
type Part struct {
	Kind       PartKind        `json:"kind"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     string          `json:"result,omitempty"`
}

// ConvTurn is one entry of ConversationState: a user turn (plain Content), an
// assistant turn (Parts of text/tool_call), or a tool turn (Parts of tool_result).
type ConvTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// CustomTool is a user-defined, sandbox-executed tool.
type CustomTool struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	InputSchema   string    `json:"input_schema"`
	Code          string    `json:"code"`
	Enabled       bool      `json:"enabled"`
	IntegrationID string    `json:"integration_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ConfigKey is one declared credential key of an Integration's config schema.
type ConfigKey struct {
	Key      string `json:"key" yaml:"key"`
	Label    string `json:"label" yaml:"label"`
	Required bool   `json:"required" yaml:"required"`
}

// Integration is a named group of CustomTools behind a declared credential schema.
type Integration struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	ConfigSchema []ConfigKey `json:"config_schema"`
	Enabled      bool        `json:"enabled"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ScheduledTask re-enters the agent loop on a cron schedule.
type ScheduledTask struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Cron        string    `json:"cron"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunStatus is the lifecycle state of a TaskRun.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// TaskRun records one firing of a ScheduledTask.
type TaskRun struct {
	ID         string     `json:"id"`
	TaskID     string     `json:"task_id"`
	Status     RunStatus  `json:"status"`
	Result     string     `json:"result"`
	Output     string     `json:"output"` // serialized trace, see TraceEntry
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TraceEntry is one entry of a TaskRun's structured trace (§4.H trace extraction).
type TraceEntry struct {
	Role      Role            `json:"role"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []TraceToolCall `json:"tool_calls,omitempty"`
	Results   []TraceResult   `json:"results,omitempty"`
}

type TraceToolCall struct {
	ToolName string          `json:"tool_name"`
	Args     json.RawMessage `json:"args,omitempty"`
}

type TraceResult struct {
	ToolName string `json:"tool_name"`
	Result   string `json:"result"`
}

// EventKind enumerates the bus's public event vocabulary (§4.A).
type EventKind string

const (
	EventStart       EventKind = "start"
	EventDelta       EventKind = "delta"
	EventToolCalls   EventKind = "tool_calls"
	EventToolResults EventKind = "tool_results"
	EventDone        EventKind = "done"
	EventConnected   EventKind = "connected"
)

// Event is one message published on the per-session event bus. Sequence is a
// monotonically increasing counter, one per Bus and shared by all sessions, threaded through for ordering
// diagnostics; it is not part of the wire contract subscribers must interpret.
type Event struct {
	Kind      EventKind `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Sequence  uint64    `json:"-"`
	Payload   any       `json:"payload,omitempty"`
}

// DeltaPayload is the payload of an EventDelta.
type DeltaPayload struct {
	Content string `json:"content"`
}

// ToolCallPayload describes one scheduled tool invocation.
type ToolCallPayload struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolResultPayload describes the outcome of one tool invocation.
type ToolResultPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Result string `json:"result"`
}

// DonePayload is the payload of an EventDone.
type DonePayload struct {
	Content string `json:"content"`
}

// ConnectedPayload is the payload of an EventConnected.
type ConnectedPayload struct {
	SessionID string `json:"sessionId"`
}
