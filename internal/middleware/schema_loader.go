package middleware

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	contextutils "metronix/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v2"
)

//go:embed schemas/requests.yaml
var requestSchemasYAML []byte

// SchemaLoader holds compiled JSON schemas keyed by component name
type SchemaLoader struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaLoader creates an empty schema loader
func NewSchemaLoader() *SchemaLoader {
	return &SchemaLoader{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

var (
	requestSchemasOnce sync.Once
	requestSchemas     *SchemaLoader
	requestSchemasErr  error
)

// RequestSchemas returns the loader for the embedded request schemas, compiled once
func RequestSchemas() (*SchemaLoader, error) {
	requestSchemasOnce.Do(func() {
		loader := NewSchemaLoader()
		if err := loader.LoadSchemas(requestSchemasYAML); err != nil {
			requestSchemasErr = err
			return
		}
		requestSchemas = loader
	})
	return requestSchemas, requestSchemasErr
}

// LoadSchemas compiles every schema under components.schemas of an OpenAPI-style YAML document
func (sl *SchemaLoader) LoadSchemas(data []byte) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return contextutils.WrapError(err, "failed to parse schema document as YAML")
	}

	components, ok := doc["components"].(map[interface{}]interface{})
	if !ok {
		return contextutils.ErrorWithContextf("no components section found in schema document")
	}
	schemas, ok := components["schemas"].(map[interface{}]interface{})
	if !ok {
		return contextutils.ErrorWithContextf("no schemas section found in components")
	}

	jsonCompatibleSchemas := make(map[string]interface{}, len(schemas))
	for schemaName, schemaData := range schemas {
		name, ok := schemaName.(string)
		if !ok {
			return contextutils.ErrorWithContextf("schema name is not a string: %v", schemaName)
		}
		converted, err := convertToJSONCompatible(schemaData)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to convert schema %s", name)
		}
		jsonCompatibleSchemas[name] = converted
	}

	for name := range jsonCompatibleSchemas {
		// Keep the whole component set in each document so $ref resolves.
		completeSchemaDoc := map[string]interface{}{
			"$schema": "http://json-schema.org/draft-07/schema#",
			"components": map[string]interface{}{
				"schemas": jsonCompatibleSchemas,
			},
			"$ref": "#/components/schemas/" + name,
		}

		schemaBytes, err := json.Marshal(completeSchemaDoc)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to marshal schema %s", name)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to compile schema %s", name)
		}
		sl.schemas[name] = schema
	}

	return nil
}

// Names lists the loaded schemas in sorted order
func (sl *SchemaLoader) Names() []string {
	names := make([]string, 0, len(sl.schemas))
	for name := range sl.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a schema named name is loaded
func (sl *SchemaLoader) Has(name string) bool {
	_, ok := sl.schemas[name]
	return ok
}

// ValidateJSON validates a raw JSON document against a schema. Validation
// failures are ErrValidationFailed with one "field: reason" per problem.
func (sl *SchemaLoader) ValidateJSON(document []byte, schemaName string) error {
	schema, exists := sl.schemas[schemaName]
	if !exists {
		return contextutils.ErrorWithContextf("schema %s not found", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "request body is not valid JSON: %v", err)
	}

	if !result.Valid() {
		validationErrors := make([]string, 0, len(result.Errors()))
		for _, validationErr := range result.Errors() {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", validationErr.Field(), validationErr.Description()))
		}
		return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "schema validation failed: %s", strings.Join(validationErrors, "; "))
	}

	return nil
}

// convertToJSONCompatible turns yaml.v2 maps into JSON maps and rewrites the
// OpenAPI "nullable" keyword into a JSON Schema union with null.
func convertToJSONCompatible(data interface{}) (interface{}, error) {
	switch v := data.(type) {
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(v))
		nullable := false

		for k, val := range v {
			key, ok := k.(string)
			if !ok {
				return nil, contextutils.ErrorWithContextf("key is not a string: %v", k)
			}
			if key == "nullable" {
				nullable, _ = val.(bool)
				continue
			}
			converted, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[key] = converted
		}

		if nullable {
			if ref, hasRef := result["$ref"].(string); hasRef {
				result["oneOf"] = []interface{}{
					map[string]interface{}{"$ref": ref},
					map[string]interface{}{"type": "null"},
				}
				delete(result, "$ref")
			} else if typeVal, hasType := result["type"].(string); hasType {
				result["type"] = []interface{}{typeVal, "null"}
			}
			if enum, hasEnum := result["enum"].([]interface{}); hasEnum {
				result["enum"] = append(enum, nil)
			}
		}

		return result, nil
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			converted, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[i] = converted
		}
		return result, nil
	default:
		return data, nil
	}
}
