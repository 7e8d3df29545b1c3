package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/envoyrun/envoy/internal/sandbox"
	"github.com/envoyrun/envoy/internal/tools"
	"github.com/envoyrun/envoy/pkg/envoy"
)

var (
	createToolSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "lowercase snake_case identifier"},
			"description": {"type": "string"},
			"input_schema": {"type": "string", "description": "JSON Schema for the tool's input, as a string"},
			"code": {"type": "string", "description": "JavaScript tool body"}
		},
		"required": ["name", "description", "code"]
	}`)
	updateToolSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"description": {"type": "string"},
			"input_schema": {"type": "string"},
			"code": {"type": "string"},
			"enabled": {"type": "boolean"}
		},
		"required": ["name"]
	}`)
	testToolSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"code": {"type": "string"},
			"input": {"type": "object"}
		},
		"required": ["code"]
	}`)
)

type createToolArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"input_schema"`
	Code        string `json:"code"`
}

func (b *Builder) createTool(ctx context.Context, args json.RawMessage) (string, bool) {
	var a createToolArgs
	if msg, ok := decodeArgs(args, &a); !ok {
		return msg, true
	}

	if err := validateName(a.Name); err != nil {
		return "Error: " + err.Error(), true
	}
	if err := sandbox.Validate(a.Code); err != nil {
		return fmt.Sprintf("Error: tool code does not parse: %v", err), true
	}
	schema, _, err := tools.NormalizeInputSchema(a.InputSchema)
	if err != nil {
		return fmt.Sprintf("Error: invalid input_schema: %v", err), true
	}

	ct := &envoy.CustomTool{
		Name:        a.Name,
		Description: a.Description,
		InputSchema: string(schema),
		Code:        a.Code,
		Enabled:     true,
	}
	if err := b.store.CreateTool(ctx, ct); err != nil {
		return storeErrorResult("create tool", err)
	}
	return fmt.Sprintf("Created tool %q.", a.Name), false
}

type updateToolArgs struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	InputSchema *string `json:"input_schema"`
	Code        *string `json:"code"`
	Enabled     *bool   `json:"enabled"`
}

func (b *Builder) updateTool(ctx context.Context, args json.RawMessage) (string, bool) {
	var a updateToolArgs
	if msg, ok := decodeArgs(args, &a); !ok {
		return msg, true
	}

	if a.Code != nil {
		if err := sandbox.Validate(*a.Code); err != nil {
			return fmt.Sprintf("Error: tool code does not parse: %v", err), true
		}
	}
	if a.InputSchema != nil {
		schema, _, err := tools.NormalizeInputSchema(*a.InputSchema)
		if err != nil {
			return fmt.Sprintf("Error: invalid input_schema: %v", err), true
		}
		normalized := string(schema)
		a.InputSchema = &normalized
	}

	if err := b.store.UpdateTool(ctx, a.Name, a.Description, a.InputSchema, a.Code, a.Enabled); err != nil {
		return storeErrorResult("update tool", err)
	}
	return fmt.Sprintf("Updated tool %q.", a.Name), false
}

type nameOnlyArgs struct {
	Name string `json:"name"`
}

func (b *Builder) deleteTool(ctx context.Context, args json.RawMessage) (string, bool) {
	var a nameOnlyArgs
	if msg, ok := decodeArgs(args, &a); !ok {
		return msg, true
	}
	if err := b.store.DeleteTool(ctx, a.Name); err != nil {
		return storeErrorResult("delete tool", err)
	}
	return fmt.Sprintf("Deleted tool %q.", a.Name), false
}

func (b *Builder) listTools(ctx context.Context, args json.RawMessage) (string, bool) {
	all, err := b.store.ListTools(ctx)
	if err != nil {
		return storeErrorResult("list tools", err)
	}
	if len(all) == 0 {
		return "No custom tools exist yet.", false
	}
	out, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error: failed to format tool list: %v", err), true
	}
	return string(out), false
}

type testToolArgs struct {
	Code  string          `json:"code"`
	Input json.RawMessage `json:"input"`
}

func (b *Builder) testTool(ctx context.Context, args json.RawMessage) (string, bool) {
	var a testToolArgs
	if msg, ok := decodeArgs(args, &a); !ok {
		return msg, true
	}
	input := a.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	result := b.sandbox.Execute(ctx, a.Code, input)
	return result, tools.IsErrorResult(result)
}
