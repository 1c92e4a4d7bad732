package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	policySchemaOnce sync.Once
	policySchema     *jsonschema.Schema
	policySchemaErr  error
)

// compiledPolicySchema compiles BuildPolicyJSONSchema once per process.
func compiledPolicySchema() (*jsonschema.Schema, error) {
	policySchemaOnce.Do(func() {
		policySchema, policySchemaErr = CompileSchema(BuildPolicyJSONSchema())
	})
	return policySchema, policySchemaErr
}

// CompileSchema compiles a JSON-Schema held as a generic map.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("policy.schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile("policy.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

// ValidateJSON checks raw model output against a compiled schema.
func ValidateJSON(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
