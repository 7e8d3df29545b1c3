package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/envoyrun/envoy/internal/sandbox"
	"github.com/envoyrun/envoy/internal/store"
	"github.com/envoyrun/envoy/pkg/envoy"
)

// Catalog builds the per-turn tool set: built-ins union standalone custom
// tools union integration-scoped tools, per §4.D.
type Catalog struct {
	store    *store.Store
	sandbox  *sandbox.Executor
	builtins []Tool
	logger   *slog.Logger
}

// New returns a Catalog. builtins are always present and always win name
// collisions against dynamic tools (§4.D).
func New(st *store.Store, sb *sandbox.Executor, builtins []Tool, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: st, sandbox: sb, builtins: builtins, logger: logger.With("component", "tools")}
}

// Build assembles the current tool set: built-ins, then standalone custom
// tools (exposed as custom_<name>), then enabled integration tools whose
// parent integration is enabled (exposed as <integration>_<tool>). A built-in
// name always wins a collision with a dynamic tool.
func (c *Catalog) Build(ctx context.Context) ([]Tool, error) {
	names := make(map[string]struct{}, len(c.builtins))
	out := make([]Tool, 0, len(c.builtins))
	for _, t := range c.builtins {
		names[t.Name()] = struct{}{}
		out = append(out, t)
	}

	customTools, err := c.store.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("tools: list custom tools: %w", err)
	}

	integrations := make(map[string]*envoy.Integration)
	if len(customTools) > 0 {
		all, err := c.store.ListIntegrations(ctx)
		if err != nil {
			return nil, fmt.Errorf("tools: list integrations: %w", err)
		}
		for _, in := range all {
			integrations[in.ID] = in
		}
	}

	for _, ct := range customTools {
		if !ct.Enabled {
			continue
		}

		exposedName := "custom_" + ct.Name
		if ct.IntegrationID != "" {
			in, ok := integrations[ct.IntegrationID]
			if !ok || !in.Enabled {
				continue
			}
			exposedName = in.Name + "_" + ct.Name
		}

		if _, collides := names[exposedName]; collides {
			c.logger.Warn("dynamic tool name collides with a built-in, skipping", "name", exposedName)
			continue
		}

		schema, normalized, err := NormalizeInputSchema(ct.InputSchema)
		if err != nil {
			c.logger.Warn("custom tool has unparseable input schema, skipping", "tool", ct.Name, "error", err)
			continue
		}
		if normalized {
			c.logger.Warn("custom tool input schema has no root type, defaulting to object", "tool", ct.Name)
		}

		names[exposedName] = struct{}{}
		out = append(out, c.wrapCustomTool(exposedName, ct, schema))
	}

	return out, nil
}

func (c *Catalog) wrapCustomTool(exposedName string, ct *envoy.CustomTool, schema json.RawMessage) Tool {
	code := ct.Code
	description := ct.Description
	return &simpleTool{
		name:        exposedName,
		description: description,
		schema:      schema,
		fn: func(ctx context.Context, args json.RawMessage) (string, bool) {
			result := c.sandbox.Execute(ctx, code, args)
			return result, IsErrorResult(result)
		},
	}
}

// IsErrorResult reports whether a sandbox result string represents a failure,
// per §4.C's "Error ..." convention.
func IsErrorResult(result string) bool {
	return len(result) >= 6 && (result[:6] == "Error " || result[:6] == "Error:")
}
