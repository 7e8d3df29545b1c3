package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// defaultObjectSchema is substituted when a stored schema string is empty; a
// schema missing a root "type" gets "type":"object" added instead. Both count
// as normalized, and the catalog logs a warning for them (§4.D).
var defaultObjectSchema = json.RawMessage(`{"type":"object"}`)

// NormalizeInputSchema parses raw as JSON Schema and tolerates a missing root
// "type" by defaulting it to "object". It rejects an array at the root
// outright (an object is required for structured tool arguments) and returns
// an error when the JSON fails to parse or its root is not an object — "prefer salvage + warn
// over silent omission, except where parsing outright fails" (spec §9).
func NormalizeInputSchema(raw string) (json.RawMessage, bool, error) {
	if raw == "" {
		return defaultObjectSchema, true, nil
	}

	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, false, fmt.Errorf("tools: invalid JSON Schema: %w", err)
	}

	if _, isArray := generic.([]any); isArray {
		return nil, false, fmt.Errorf("tools: root JSON Schema must be an object, not an array")
	}

	obj, ok := generic.(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("tools: root JSON Schema must be an object")
	}

	normalized := false
	if _, hasType := obj["type"]; !hasType {
		obj["type"] = "object"
		normalized = true
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, false, fmt.Errorf("tools: re-marshal schema: %w", err)
	}
	return out, normalized, nil
}

// ValidateSchemaObject is a strict schema check: the schema must compile and
// must be an object at the root, never an array. The meta-tools do not call it;
// they check input_schema with NormalizeInputSchema.
func ValidateSchemaObject(raw string) error {
	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return fmt.Errorf("input_schema is not valid JSON: %w", err)
	}
	if _, isArray := generic.([]any); isArray {
		return fmt.Errorf("input_schema must be an object, not an array")
	}
	if _, ok := generic.(map[string]any); !ok {
		return fmt.Errorf("input_schema must be an object")
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(raw)); err != nil {
		return fmt.Errorf("input_schema failed to compile: %w", err)
	}
	if _, err := compiler.Compile("schema.json"); err != nil {
		return fmt.Errorf("input_schema failed to compile: %w", err)
	}
	return nil
}
