package mission

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed schema/mission.schema.json
var missionSchemaJSON []byte

const missionSchemaURL = "schema://mission.json"

// Schema is a compiled JSON Schema used to vet mission documents
type Schema struct {
	compiled *jsonschema.Schema
}

var (
	schemaOnce     sync.Once
	compiledSchema *Schema
)

// MissionSchema returns the compiled embedded mission schema. The schema
// ships with the binary, so a compile failure is a programming error.
func MissionSchema() *Schema {
	schemaOnce.Do(func() {
		s, err := CompileSchema(missionSchemaURL, missionSchemaJSON)
		if err != nil {
			panic(fmt.Sprintf("mission schema: %v", err))
		}
		compiledSchema = s
	})
	return compiledSchema
}

// CompileSchema compiles a JSON Schema document
func CompileSchema(url string, doc []byte) (*Schema, error) {
	parsed, err := decodeJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// ValidateYAML checks a YAML document against the schema.
// The document is converted to its JSON form first.
func (s *Schema) ValidateYAML(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert yaml to json: %w", err)
	}
	v, err := decodeJSON(raw)
	if err != nil {
		return err
	}

	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// decodeJSON keeps numbers as json.Number so integers stay integers
func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}
