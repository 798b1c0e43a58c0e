// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package language

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// CatalogFile is the on-disk representation of a language catalog (languages.yaml).
type CatalogFile struct {
	Base      string     `yaml:"base,omitempty" json:"base,omitempty"`
	Languages []Language `yaml:"languages,omitempty" json:"languages,omitempty"`
}

// JSONSchemaExtend sets the base code pattern.
func (CatalogFile) JSONSchemaExtend(s *jsonschema.Schema) {
	setPattern(s, "base")
}

var (
	schemaOnce     sync.Once
	compiledSchema *jschema.Schema
	errSchema      error
)

// SchemaID is the $id of the language catalog schema.
const SchemaID = "https://holomush.dev/schemas/languages.schema.json"

// GenerateSchema generates a JSON Schema from the CatalogFile struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&CatalogFile{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Auth Lobby Language Catalog"
	schema.Description = "Locales and their fallback chain for localized banner assets"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

func getCompiledSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaBytes, err := GenerateSchema()
		if err != nil {
			errSchema = err
			return
		}
		var schemaData any
		if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
			errSchema = fmt.Errorf("failed to parse schema JSON: %w", err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("languages.schema.json", schemaData); err != nil {
			errSchema = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		compiledSchema, errSchema = c.Compile("languages.schema.json")
	})
	return compiledSchema, errSchema
}

// ValidateSchema validates YAML catalog data against the catalog JSON Schema.
func ValidateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	// Round-trip through JSON so yaml's int/map types match what the validator expects.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("catalog is not JSON-compatible: %w", err)
	}
	inst, err := jschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return fmt.Errorf("catalog is not JSON-compatible: %w", err)
	}

	sch, err := getCompiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ParseCatalog validates and builds a Catalog from YAML data.
func ParseCatalog(data []byte) (*Catalog, error) {
	if len(data) == 0 {
		return nil, oops.Code("LANGUAGE_CATALOG_INVALID").Errorf("catalog data is empty")
	}
	if err := ValidateSchema(data); err != nil {
		return nil, oops.Code("LANGUAGE_CATALOG_INVALID").Wrap(err)
	}

	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, oops.Code("LANGUAGE_CATALOG_INVALID").Wrapf(err, "invalid YAML")
	}
	if file.Base == "" {
		file.Base = DefaultBase
	}
	return NewCatalog(file.Base, file.Languages)
}

// LoadCatalog reads a catalog file from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, oops.Code("LANGUAGE_CATALOG_INVALID").
			With("path", path).
			Wrapf(err, "read language catalog")
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return c, nil
}
