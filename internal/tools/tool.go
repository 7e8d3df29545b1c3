// Package tools implements Envoy's tool catalog (§4.D): at the start of each
// model step the agent loop asks this package for the current tool set, the
// union of built-ins, standalone custom tools, and integration-scoped tools.
//
// Grounded on internal/agent/tool_registry.go's registry mechanics (bounded
// name/params validation, "not found" as a data result rather than an error).
package tools

import (
	"context"
	"encoding/json"
)

// Tool is one model-callable capability: a name, a JSON Schema describing its
// input, and an execute function. Execute never returns a Go error for a
// tool-body failure — per §4.C/§4.I, failures are coerced into the result
// string itself (isError is set instead) so the model can see and recover
// from them.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (result string, isError bool)
}

// simpleTool adapts a plain function into a Tool, used by built-ins and by
// other packages (e.g. metatools) via NewFunc.
type simpleTool struct {
	name        string
	description string
	schema      json.RawMessage
	fn          func(ctx context.Context, args json.RawMessage) (string, bool)
}

func (t *simpleTool) Name() string            { return t.name }
func (t *simpleTool) Description() string     { return t.description }
func (t *simpleTool) Schema() json.RawMessage { return t.schema }
func (t *simpleTool) Execute(ctx context.Context, args json.RawMessage) (string, bool) {
	return t.fn(ctx, args)
}

// NewFunc adapts a plain function into a Tool. It is the constructor other
// packages use to contribute tools to a Catalog's builtins list (e.g. the
// meta-tools that let the agent extend its own capabilities, §4.I).
func NewFunc(name, description string, schema json.RawMessage, fn func(ctx context.Context, args json.RawMessage) (string, bool)) Tool {
	return &simpleTool{name: name, description: description, schema: schema, fn: fn}
}
