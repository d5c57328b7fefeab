package setup

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// inputSchema constrains the credential form before anything touches the
// network. The provider enum is injected from Providers at compile time.
const inputSchema = `{
	"type": "object",
	"required": ["provider", "username", "password"],
	"properties": {
		"provider": {"type": "string", "enum": %s},
		"username": {"type": "string", "minLength": 1},
		"password": {"type": "string", "minLength": 1}
	}
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		ids := make([]string, len(Providers))
		for i, p := range Providers {
			ids[i] = p.ID
		}
		enum, err := json.Marshal(ids)
		if err != nil {
			compileErr = err
			return
		}

		var doc any
		if err := json.Unmarshal([]byte(fmt.Sprintf(inputSchema, enum)), &doc); err != nil {
			compileErr = fmt.Errorf("failed to unmarshal schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("setup.json", doc); err != nil {
			compileErr = fmt.Errorf("failed to add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile("setup.json")
	})
	return compiled, compileErr
}

// ValidateInput checks a credential form payload against the input schema.
func ValidateInput(values map[string]any) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	return schema.Validate(map[string]any(values))
}
