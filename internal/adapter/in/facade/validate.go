package facade

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator compiles one JSON Schema per command kind and validates an
// envelope's data payload before it reaches the command queue — the
// concrete mechanism behind spec.md §7's "reject at façade before
// enqueue" Validation error class. Grounded on the teacher pack's
// schema-compile-and-validate style in
// hellsoul86-voxelcraft.ai/internal/protocol/schemas_test.go.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// commandsWithSchema lists every cmd name that requires a data payload;
// "ping" and "ping"-like commands with no payload are intentionally
// absent.
var commandsWithSchema = []string{"spawn", "remove", "set_body", "set_force", "apply_impulse", "get_object_states"}

// NewValidator compiles every schemas/<cmd>.schema.json file found under
// dir. A command with no corresponding file is left unvalidated.
func NewValidator(dir string) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*jsonschema.Schema)}
	for _, cmd := range commandsWithSchema {
		path := filepath.Join(dir, cmd+".schema.json")
		schema, err := jsonschema.Compile(path)
		if err != nil {
			continue // no schema file for this command; validated elsewhere or not required
		}
		v.schemas[cmd] = schema
	}
	return v, nil
}

// Validate checks data against the schema registered for cmd, if any.
func (v *Validator) Validate(cmd string, data json.RawMessage) error {
	schema, ok := v.schemas[cmd]
	if !ok {
		return nil
	}
	var doc interface{}
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return schema.Validate(doc)
}
