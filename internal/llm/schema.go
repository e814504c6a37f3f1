package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/e6ai/expense-agent/constants"
)

// BuildReceiptJSONSchema returns a JSON-Schema (draft 2020-12 subset) for the
// five-field object the prompt requests. It is used locally as an advisory
// check on the model's output; defaulting proceeds regardless of the verdict.
func BuildReceiptJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"vendor":   map[string]any{"type": "string"},
			"amount":   map[string]any{"type": "number", "minimum": 0.0},
			"currency": map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
			"date":     map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"category": map[string]any{"type": "string", "enum": constants.AsStringSlice()},
		},
		"required": []string{"vendor", "amount", "currency", "date", "category"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
