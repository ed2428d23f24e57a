package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema constrains the provider's analyze payload before it is
// trusted by the mapper: confidence must stay in [0,1] and every field
// needs a name and a known kind.
func responseSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"fields"},
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"fields": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"name", "kind"},
					"properties": map[string]any{
						"name":         map[string]any{"type": "string", "minLength": 1},
						"value":        map[string]any{"type": []any{"string", "null"}},
						"kind":         map[string]any{"type": "string", "enum": []any{KindLine, KindKeyValue, KindTableCell, KindFormField}},
						"confidence":   map[string]any{"type": []any{"number", "null"}, "minimum": 0.0, "maximum": 1.0},
						"page":         map[string]any{"type": []any{"integer", "null"}, "minimum": 1},
						"bounding_box": map[string]any{"type": "string"},
						"table_index":  map[string]any{"type": []any{"integer", "null"}, "minimum": 0},
						"row_index":    map[string]any{"type": []any{"integer", "null"}, "minimum": 0},
						"column_index": map[string]any{"type": []any{"integer", "null"}, "minimum": 0},
					},
				},
			},
		},
	}
}

// ValidateResponse validates raw provider JSON against the response schema.
func ValidateResponse(data []byte) error {
	b, err := json.Marshal(responseSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analyze.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("analyze.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
