package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	_ "github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// AnthropicConfig configures AnthropicProvider. Grounded on
// internal/agent/providers/anthropic.go's AnthropicConfig.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

func (c *AnthropicConfig) applyDefaults() {
	if c.DefaultModel == "" {
		c.DefaultModel = "claude-sonnet-4-20250514"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
}

// AnthropicProvider implements LLMProvider against Anthropic's Messages API.
// It is the "one configured endpoint" spec's Non-goals restrict model-provider
// routing to.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewAnthropicProvider validates cfg and returns a ready provider.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("agent: anthropic API key is required")
	}
	cfg.applyDefaults()

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

// Name identifies this provider for logging.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete starts a streaming Messages call and translates Anthropic's SSE
// stream into the provider-neutral CompletionChunk vocabulary.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (<-chan *CompletionChunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages:  toAnthropicMessages(req.Messages),
		Tools:     toAnthropicTools(req.Tools),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	out := make(chan *CompletionChunk, 16)

	go func() {
		defer close(out)

		var lastErr error
		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			if attempt > 0 {
				select {
				case <-time.After(p.retryDelay):
				case <-ctx.Done():
					out <- &CompletionChunk{Kind: ChunkError, Err: ctx.Err(), Final: true}
					return
				}
			}

			lastErr = p.streamOnce(ctx, params, out)
			if lastErr == nil {
				return
			}
			if ctx.Err() != nil {
				out <- &CompletionChunk{Kind: ChunkError, Err: ctx.Err(), Final: true}
				return
			}
		}
		out <- &CompletionChunk{Kind: ChunkError, Err: fmt.Errorf("agent: anthropic stream failed after %d attempts: %w", p.maxRetries+1, lastErr), Final: true}
	}()

	return out, nil
}

// streamOnce runs one streaming attempt, emitting chunks as they arrive.
// Returning a non-nil error leaves the decision to retry or surface up to the
// caller; it never sends a Final chunk itself on error so the retry loop can
// re-attempt cleanly.
func (p *AnthropicProvider) streamOnce(ctx context.Context, params anthropic.MessageNewParams, out chan<- *CompletionChunk) error {
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var toolUseID, toolUseName string
	var toolArgs []byte
	sawToolUse := false

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			if event.ContentBlock.Type == "tool_use" {
				toolUseID = event.ContentBlock.ID
				toolUseName = event.ContentBlock.Name
				toolArgs = nil
				sawToolUse = true
			}
		case "content_block_delta":
			switch event.Delta.Type {
			case "text_delta":
				out <- &CompletionChunk{Kind: ChunkTextDelta, TextDelta: event.Delta.Text}
			case "input_json_delta":
				toolArgs = append(toolArgs, []byte(event.Delta.PartialJSON)...)
			}
		case "content_block_stop":
			if sawToolUse && toolUseID != "" {
				args := toolArgs
				if len(args) == 0 {
					args = []byte("{}")
				}
				out <- &CompletionChunk{Kind: ChunkToolCall, ToolCall: &ToolCall{ID: toolUseID, Name: toolUseName, Args: args}}
				toolUseID, toolUseName, toolArgs = "", "", nil
				sawToolUse = false
			}
		case "message_delta":
			if event.Delta.StopReason != "" {
				reason := FinishStop
				if event.Delta.StopReason == "tool_use" {
					reason = FinishToolCalls
				}
				out <- &CompletionChunk{Final: true, FinishReason: reason}
			}
		}
	}

	return stream.Err()
}

func toAnthropicMessages(msgs []ProviderMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		var blocks []anthropic.ContentBlockParamUnion
		for _, part := range m.Parts {
			switch {
			case part.ToolCallID != "" && part.Result != "":
				blocks = append(blocks, anthropic.NewToolResultBlock(part.ToolCallID, part.Result, false))
			case part.ToolCallID != "" && part.ToolName != "":
				var input any
				_ = json.Unmarshal(part.Args, &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(part.ToolCallID, input, part.ToolName))
			case part.Text != "":
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		}
		if len(blocks) == 0 && len(m.Parts) == 0 {
			blocks = append(blocks, anthropic.NewTextBlock(""))
		}

		switch m.Role {
		case "user", "tool":
			out = append(out, anthropic.NewUserMessage(blocks...))
		default:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	return out
}

func toAnthropicTools(defs []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		var schema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal(d.InputSchema, &schema)
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}
