package tool

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// compileSchema turns a raw JSON Schema document into a resolved validator.
// Registration fails fast on schemas that cannot compile, so a bad schema
// never reaches the dispatch path.
func compileSchema(raw json.RawMessage) (*jsonschema.Resolved, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{"type":"object"}`)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}
	return resolved, nil
}

// validateArgs checks an arguments document against a compiled schema.
// Empty arguments are treated as the empty object: models routinely omit
// the arguments field for zero-parameter tools.
func validateArgs(resolved *jsonschema.Resolved, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("%w: arguments are not valid json", ErrValidationFailed)
	}
	if _, ok := v.(map[string]any); !ok {
		return fmt.Errorf("%w: arguments must be a json object", ErrValidationFailed)
	}
	if err := resolved.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return nil
}
