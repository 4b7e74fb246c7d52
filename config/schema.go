package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/pelletier/go-toml/v2"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/ragsync/errors"
)

const schemaResource = "ragsync.schema.json"

// GenerateSchema reflects the JSON Schema for ragsync configuration files.
// Known sections are closed; unknown top-level keys are extension sections
// and stay allowed.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		DoNotReference:            true,
		Anonymous:                 true,
		FieldNameTag:              "yaml",
	}

	schema := r.Reflect(&Config{})
	schema.Title = "ragsync Configuration"
	schema.Description = "Schema for ragsync.yml and ragsync.toml."
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.AdditionalProperties = jsonschema.TrueSchema

	return json.MarshalIndent(schema, "", "  ")
}

// ValidateDocument validates a raw configuration document against the
// generated schema. format is "yaml" or "toml".
func ValidateDocument(data []byte, format string) error {
	compiled, err := compileSchema()
	if err != nil {
		return err
	}

	expanded := []byte(expandEnvVars(string(data)))
	var raw map[string]interface{}
	if format == "toml" {
		err = toml.Unmarshal(expanded, &raw)
	} else {
		err = yaml.Unmarshal(expanded, &raw)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, fmt.Sprintf("failed to parse %s document", format))
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	// Round-trip through JSON so values have the types the validator expects.
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to convert document to JSON")
	}
	var doc interface{}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to convert document to JSON")
	}

	if err := compiled.Validate(doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed")
	}
	return nil
}

func compileSchema() (*santhosh.Schema, error) {
	data, err := GenerateSchema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to generate schema")
	}
	compiler := santhosh.NewCompiler()
	if err := compiler.AddResource(schemaResource, bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to add schema resource")
	}
	compiled, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to compile schema")
	}
	return compiled, nil
}
