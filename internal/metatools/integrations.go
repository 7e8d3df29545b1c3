package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/envoyrun/envoy/internal/integrations"
	"github.com/envoyrun/envoy/internal/sandbox"
	"github.com/envoyrun/envoy/internal/tools"
	"github.com/envoyrun/envoy/pkg/envoy"
)

var (
	createIntegrationSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"description": {"type": "string"},
			"config_schema": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"key": {"type": "string"},
						"label": {"type": "string"},
						"required": {"type": "boolean"}
					},
					"required": ["key"]
				}
			}
		},
		"required": ["name", "description"]
	}`)
	addIntegrationToolSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"integration": {"type": "string"},
			"name": {"type": "string"},
			"description": {"type": "string"},
			"input_schema": {"type": "string"},
			"code": {"type": "string"}
		},
		"required": ["integration", "name", "description", "code"]
	}`)
	removeIntegrationToolSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"integration": {"type": "string"},
			"name": {"type": "string"}
		},
		"required": ["integration", "name"]
	}`)
)

type createIntegrationArgs struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	ConfigSchema []envoy.ConfigKey `json:"config_schema"`
}

func (b *Builder) createIntegration(ctx context.Context, args json.RawMessage) (string, bool) {
	var a createIntegrationArgs
	if msg, ok := decodeArgs(args, &a); !ok {
		return msg, true
	}
	if err := validateName(a.Name); err != nil {
		return "Error: " + err.Error(), true
	}

	in := &envoy.Integration{
		Name:         a.Name,
		Description:  a.Description,
		ConfigSchema: a.ConfigSchema,
		Enabled:      true,
	}
	if err := b.store.CreateIntegration(ctx, in); err != nil {
		return storeErrorResult("create integration", err)
	}
	return fmt.Sprintf("Created integration %q.", a.Name), false
}

type addIntegrationToolArgs struct {
	Integration string `json:"integration"`
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"input_schema"`
	Code        string `json:"code"`
}

func (b *Builder) addIntegrationTool(ctx context.Context, args json.RawMessage) (string, bool) {
	var a addIntegrationToolArgs
	if msg, ok := decodeArgs(args, &a); !ok {
		return msg, true
	}
	if err := validateName(a.Name); err != nil {
		return "Error: " + err.Error(), true
	}
	if err := sandbox.Validate(a.Code); err != nil {
		return fmt.Sprintf("Error: tool code does not parse: %v", err), true
	}

	in, err := b.store.GetIntegration(ctx, a.Integration)
	if err != nil {
		return storeErrorResult("look up integration", err)
	}
	schema, _, err := tools.NormalizeInputSchema(a.InputSchema)
	if err != nil {
		return fmt.Sprintf("Error: invalid input_schema: %v", err), true
	}

	ct := &envoy.CustomTool{
		Name:          a.Name,
		Description:   a.Description,
		InputSchema:   string(schema),
		Code:          a.Code,
		Enabled:       true,
		IntegrationID: in.ID,
	}
	if err := b.store.CreateTool(ctx, ct); err != nil {
		return storeErrorResult("create integration tool", err)
	}
	return fmt.Sprintf("Added tool %q to integration %q.", a.Name, a.Integration), false
}

type removeIntegrationToolArgs struct {
	Integration string `json:"integration"`
	Name        string `json:"name"`
}

func (b *Builder) removeIntegrationTool(ctx context.Context, args json.RawMessage) (string, bool) {
	var a removeIntegrationToolArgs
	if msg, ok := decodeArgs(args, &a); !ok {
		return msg, true
	}

	ct, err := b.store.GetTool(ctx, a.Name)
	if err != nil {
		return storeErrorResult("look up tool", err)
	}
	in, err := b.store.GetIntegration(ctx, a.Integration)
	if err != nil {
		return storeErrorResult("look up integration", err)
	}
	if ct.IntegrationID != in.ID {
		return fmt.Sprintf("Error: tool %q does not belong to integration %q.", a.Name, a.Integration), true
	}

	if err := b.store.DeleteTool(ctx, a.Name); err != nil {
		return storeErrorResult("remove integration tool", err)
	}
	return fmt.Sprintf("Removed tool %q from integration %q.", a.Name, a.Integration), false
}

func (b *Builder) deleteIntegration(ctx context.Context, args json.RawMessage) (string, bool) {
	var a nameOnlyArgs
	if msg, ok := decodeArgs(args, &a); !ok {
		return msg, true
	}
	if err := b.store.DeleteIntegration(ctx, a.Name); err != nil {
		return storeErrorResult("delete integration", err)
	}
	return fmt.Sprintf("Deleted integration %q and its tools.", a.Name), false
}

func (b *Builder) listIntegrations(ctx context.Context, args json.RawMessage) (string, bool) {
	all, err := b.store.ListIntegrations(ctx)
	if err != nil {
		return storeErrorResult("list integrations", err)
	}
	if len(all) == 0 {
		return "No integrations exist yet.", false
	}

	type summary struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Enabled     bool   `json:"enabled"`
		Configured  bool   `json:"configured"`
	}
	out := make([]summary, 0, len(all))
	for _, in := range all {
		out = append(out, summary{Name: in.Name, Description: in.Description, Enabled: in.Enabled, Configured: integrations.Configured(in)})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error: failed to format integration list: %v", err), true
	}
	return string(data), false
}
