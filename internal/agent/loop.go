package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/envoyrun/envoy/internal/bus"
	"github.com/envoyrun/envoy/internal/store"
	"github.com/envoyrun/envoy/internal/tools"
	"github.com/envoyrun/envoy/pkg/envoy"
)

// MaxSteps is the hard per-turn step bound (§4.F). Reaching it terminates the
// turn with whatever text has accumulated; this is normal completion, not an
// error.
const MaxSteps = 10

// Catalog is the subset of tools.Catalog the loop needs; kept as an interface
// so tests can substitute a fake tool set without a real store/sandbox.
type Catalog interface {
	Build(ctx context.Context) ([]tools.Tool, error)
}

// SystemPromptBuilder assembles the dynamic system prompt for a turn (§4.F:
// "reassembled on every turn, not cached").
type SystemPromptBuilder func(ctx context.Context) (string, error)

// Loop drives one conversational turn end to end: load state, stream the
// model, execute requested tools, re-enter the model with results, and
// publish events to the bus. Grounded on internal/agent/loop.go's
// AgenticLoop.Run/streamPhase/executeToolsPhase/continuePhase structure.
type Loop struct {
	provider     LLMProvider
	catalog      Catalog
	store        *store.Store
	bus          *bus.Bus
	systemPrompt SystemPromptBuilder
	maxSteps     int
	logger       *slog.Logger
}

// New returns a ready-to-use Loop.
func New(provider LLMProvider, catalog Catalog, st *store.Store, b *bus.Bus, systemPrompt SystemPromptBuilder, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		provider:     provider,
		catalog:      catalog,
		store:        st,
		bus:          b,
		systemPrompt: systemPrompt,
		maxSteps:     MaxSteps,
		logger:       logger.With("component", "agent"),
	}
}

// ProcessTurn implements §4.F's processTurn(sessionId, userMessage, history).
// History is loaded from the store; the updated history is persisted before
// returning. The bus is published to throughout — start, per-step delta/
// tool_calls/tool_results, and a final done.
func (l *Loop) ProcessTurn(ctx context.Context, sessionID, userMessage string) (string, []envoy.ConvTurn, error) {
	history, err := l.store.GetConversationState(ctx, sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("agent: load conversation state: %w", err)
	}

	working := append(append([]envoy.ConvTurn{}, history...), envoy.ConvTurn{Role: envoy.RoleUser, Content: userMessage})
	l.bus.Publish(sessionID, envoy.EventStart, nil)

	var fullText strings.Builder
	var stepErr error

	for step := 0; step < l.maxSteps; step++ {
		toolSet, err := l.catalog.Build(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("agent: build tool set: %w", err)
		}

		system, err := l.promptFor(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("agent: build system prompt: %w", err)
		}

		req := CompletionRequest{
			System:   system,
			Messages: toProviderMessages(working),
			Tools:    toToolDefinitions(toolSet),
		}

		stepText, toolCalls, finish, err := l.streamStep(ctx, sessionID, req)
		fullText.WriteString(stepText)
		if err != nil {
			l.logger.Error("stream error, aborting step loop", "session", sessionID, "error", err)
			stepErr = err
			break
		}

		assistantParts := make([]envoy.Part, 0, len(toolCalls)+1)
		if stepText != "" {
			assistantParts = append(assistantParts, envoy.Part{Kind: envoy.PartText, Text: stepText})
		}
		for _, tc := range toolCalls {
			assistantParts = append(assistantParts, envoy.Part{Kind: envoy.PartToolCall, ToolCallID: tc.ID, ToolName: tc.Name, Args: tc.Args})
		}
		if len(assistantParts) > 0 {
			working = append(working, envoy.ConvTurn{Role: envoy.RoleAssistant, Parts: assistantParts})
		}

		if finish != FinishToolCalls || len(toolCalls) == 0 {
			break
		}

		results := l.executeTools(ctx, sessionID, toolSet, toolCalls)
		toolParts := make([]envoy.Part, 0, len(results))
		for _, r := range results {
			toolParts = append(toolParts, envoy.Part{Kind: envoy.PartToolResult, ToolCallID: r.ToolCallID, ToolName: r.Name, Result: r.Content})
		}
		working = append(working, envoy.ConvTurn{Role: envoy.RoleTool, Parts: toolParts})
	}

	finalText := fullText.String()
	l.bus.Publish(sessionID, envoy.EventDone, envoy.DonePayload{Content: finalText})

	if err := l.store.SetConversationState(ctx, sessionID, working); err != nil {
		return "", nil, fmt.Errorf("agent: persist conversation state: %w", err)
	}
	if err := l.store.SetTitleIfDefault(ctx, sessionID, userMessage); err != nil {
		l.logger.Warn("failed to set session title", "session", sessionID, "error", err)
	}
	if err := l.store.AppendMessage(ctx, &envoy.Message{SessionID: sessionID, Role: envoy.RoleUser, Content: userMessage}); err != nil {
		l.logger.Warn("failed to append user transcript row", "session", sessionID, "error", err)
	}
	if err := l.store.AppendMessage(ctx, &envoy.Message{SessionID: sessionID, Role: envoy.RoleAssistant, Content: finalText}); err != nil {
		l.logger.Warn("failed to append assistant transcript row", "session", sessionID, "error", err)
	}

	// A stream/model failure breaks the step loop but never corrupts history:
	// whatever was accumulated is still persisted and returned (§7).
	return finalText, working, stepErr
}

func (l *Loop) promptFor(ctx context.Context) (string, error) {
	if l.systemPrompt == nil {
		return "", nil
	}
	return l.systemPrompt(ctx)
}

// streamStep runs one streaming model call to completion, publishing delta and
// tool_calls events as they arrive, and returns the accumulated text, the
// tool calls requested, and the finish reason.
func (l *Loop) streamStep(ctx context.Context, sessionID string, req CompletionRequest) (string, []ToolCall, FinishReason, error) {
	chunks, err := l.provider.Complete(ctx, req)
	if err != nil {
		return "", nil, "", err
	}

	var text strings.Builder
	var toolCalls []ToolCall
	var finish FinishReason
	var streamErr error

	for chunk := range chunks {
		switch chunk.Kind {
		case ChunkTextDelta:
			text.WriteString(chunk.TextDelta)
			l.bus.Publish(sessionID, envoy.EventDelta, envoy.DeltaPayload{Content: chunk.TextDelta})
		case ChunkToolCall:
			if chunk.ToolCall != nil {
				toolCalls = append(toolCalls, *chunk.ToolCall)
				l.bus.Publish(sessionID, envoy.EventToolCalls, []envoy.ToolCallPayload{{
					ID: chunk.ToolCall.ID, Name: chunk.ToolCall.Name, Args: json.RawMessage(chunk.ToolCall.Args),
				}})
			}
		case ChunkError:
			streamErr = chunk.Err
		}
		if chunk.Final {
			finish = chunk.FinishReason
		}
	}

	return text.String(), toolCalls, finish, streamErr
}

// executeTools runs every requested tool call against the current tool set
// and publishes a single tool_results event for the batch.
func (l *Loop) executeTools(ctx context.Context, sessionID string, toolSet []tools.Tool, calls []ToolCall) []ToolResult {
	byName := make(map[string]tools.Tool, len(toolSet))
	for _, t := range toolSet {
		byName[t.Name()] = t
	}

	results := make([]ToolResult, 0, len(calls))
	payloads := make([]envoy.ToolResultPayload, 0, len(calls))
	for _, call := range calls {
		t, ok := byName[call.Name]
		var content string
		var isErr bool
		if !ok {
			content, isErr = fmt.Sprintf("Error: tool not found: %s", call.Name), true
		} else {
			content, isErr = t.Execute(ctx, call.Args)
		}
		results = append(results, ToolResult{ToolCallID: call.ID, Name: call.Name, Content: content, IsError: isErr})
		payloads = append(payloads, envoy.ToolResultPayload{ID: call.ID, Name: call.Name, Result: content})
	}
	l.bus.Publish(sessionID, envoy.EventToolResults, payloads)
	return results
}

func toProviderMessages(turns []envoy.ConvTurn) []ProviderMessage {
	out := make([]ProviderMessage, 0, len(turns))
	for _, t := range turns {
		var parts []ProviderPart
		if t.Content != "" {
			parts = append(parts, ProviderPart{Text: t.Content})
		}
		for _, p := range t.Parts {
			switch p.Kind {
			case envoy.PartText:
				parts = append(parts, ProviderPart{Text: p.Text})
			case envoy.PartToolCall:
				parts = append(parts, ProviderPart{ToolCallID: p.ToolCallID, ToolName: p.ToolName, Args: p.Args})
			case envoy.PartToolResult:
				parts = append(parts, ProviderPart{ToolCallID: p.ToolCallID, ToolName: p.ToolName, Result: p.Result})
			}
		}
		role := string(t.Role)
		out = append(out, ProviderMessage{Role: role, Parts: parts})
	}
	return out
}

func toToolDefinitions(toolSet []tools.Tool) []ToolDefinition {
	out := make([]ToolDefinition, 0, len(toolSet))
	for _, t := range toolSet {
		out = append(out, ToolDefinition{Name: t.Name(), Description: t.Description(), InputSchema: t.Schema()})
	}
	return out
}
