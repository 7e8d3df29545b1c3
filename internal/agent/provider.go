// Package agent implements Envoy's agent loop (§4.F): the bounded,
// step-by-step reasoning/tool-calling cycle that drives a streaming
// language-model call, interleaves tool execution, and re-enters the model
// with tool results.
//
// Grounded on internal/agent/loop.go's AgenticLoop (explicit step loop rather
// than SDK auto-continuation, channel-based <-chan *ResponseChunk streaming)
// and internal/agent/provider_types.go's LLMProvider contract.
package agent

import "context"

// ChunkKind enumerates the events a streaming completion call may produce,
// per spec §9's model-provider-abstraction design note. There is no
// tool-result kind: the loop executes tools (via the catalog
// and sandbox) between steps and splices the results back in; the provider
// only ever reports that the model *wants* to call tools.
type ChunkKind string

const (
	ChunkTextDelta ChunkKind = "text-delta"
	ChunkToolCall  ChunkKind = "tool-call"
	ChunkError     ChunkKind = "error"
)

// FinishReason distinguishes "wants to call tools" from "is done" at the end
// of a streaming call.
type FinishReason string

const (
	FinishToolCalls FinishReason = "tool-calls"
	FinishStop      FinishReason = "stop"
)

// ToolCall is one model-requested tool invocation.
type ToolCall struct {
	ID   string
	Name string
	Args []byte // raw JSON
}

// ToolResult is the outcome of one tool invocation, spliced back into the
// message history by the loop before the next step.
type ToolResult struct {
	ToolCallID string
	Name       string
	Content    string
	IsError    bool
}

// CompletionChunk is one event of a streaming completion.
type CompletionChunk struct {
	Kind      ChunkKind
	TextDelta string
	ToolCall  *ToolCall
	Err       error

	// Final is set on the terminal chunk of a step, carrying the finish
	// reason for this step.
	Final        bool
	FinishReason FinishReason
}

// ToolDefinition describes one tool available to the model for a single
// Complete call, as produced by the tool catalog (§4.D).
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema []byte // raw JSON Schema
}

// CompletionRequest is one streaming model call.
type CompletionRequest struct {
	Model    string
	System   string
	Messages []ProviderMessage
	Tools    []ToolDefinition
}

// ProviderMessage is one message in the replayable history sent to/received
// from the provider. It is the provider-facing analogue of envoy.ConvTurn.
type ProviderMessage struct {
	Role  string // "user" | "assistant" | "tool"
	Parts []ProviderPart
}

// ProviderPart mirrors envoy.Part in the provider's own vocabulary.
type ProviderPart struct {
	Text       string
	ToolCallID string
	ToolName   string
	Args       []byte
	Result     string
}

// LLMProvider is the only contract the loop requires of a language model: a
// streaming call returning an ordered event stream that ends with a finish
// reason. It returns no message list: the loop builds the replayable history
// itself from the streamed text and tool calls.
type LLMProvider interface {
	// Complete starts a streaming completion. The returned channel is closed
	// when the call terminates, whether by success, stream error, or context
	// cancellation.
	Complete(ctx context.Context, req CompletionRequest) (<-chan *CompletionChunk, error)
	Name() string
}
