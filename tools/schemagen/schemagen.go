// Package main generates JSON schemas for the regiontree configuration file and
// version report from their Go structs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/regiontree/internal/scenario"
	"github.com/Sumatoshi-tech/regiontree/pkg/config"
	"github.com/Sumatoshi-tech/regiontree/pkg/version"
)

// Schema represents a JSON Schema.
type Schema struct {
	Schema               string             `json:"$schema,omitempty"`
	Title                string             `json:"title,omitempty"`
	Description          string             `json:"description,omitempty"`
	Type                 string             `json:"type,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Definitions          map[string]*Schema `json:"definitions,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

var outputDir string

func main() {
	flag.StringVar(&outputDir, "o", "docs/schemas", "Output directory for schemas")
	flag.Parse()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	targets := map[string]any{
		"config":  &config.Config{},
		"version": &version.Info{},
	}

	for name, target := range targets {
		schema := generateSchema(name, target)
		if err := writeSchema(name, schema); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing schema for %s: %v\n", name, err)
			os.Exit(1)
		}

		fmt.Printf("Generated schema for %s\n", name)
	}

	// The scenario schema is hand written and embedded; copy it next to the others.
	if err := os.WriteFile(filepath.Join(outputDir, "scenario.json"), scenario.Schema(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing scenario schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("All schemas generated successfully")
}

func generateSchema(name string, v any) *Schema {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	defs := make(map[string]*Schema)
	closed := false

	schema := &Schema{
		Schema:               "https://json-schema.org/draft-07/schema#",
		Title:                "regiontree " + name,
		Description:          fmt.Sprintf("JSON schema for the regiontree %s document", name),
		Type:                 "object",
		Properties:           structToProperties(t, defs),
		AdditionalProperties: &closed,
	}

	if len(defs) > 0 {
		schema.Definitions = defs
	}

	return schema
}

// structToProperties maps fields by their yaml tag. Every key is optional since
// missing keys fall back to defaults.
func structToProperties(t reflect.Type, defs map[string]*Schema) map[string]*Schema {
	props := make(map[string]*Schema)

	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("yaml")

		if tag == "-" || tag == "" {
			continue
		}

		name, _, _ := strings.Cut(tag, ",")
		props[name] = typeToSchema(field.Type, defs)
	}

	return props
}

func typeToSchema(t reflect.Type, defs map[string]*Schema) *Schema {
	if t == reflect.TypeOf(time.Duration(0)) {
		return &Schema{Type: "string", Description: "Go duration, e.g. 30s or 5m"}
	}

	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}

	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}

	case reflect.Bool:
		return &Schema{Type: "boolean"}

	case reflect.Slice:
		return &Schema{Type: "array", Items: typeToSchema(t.Elem(), defs)}

	case reflect.Struct:
		defName := t.Name()
		if _, exists := defs[defName]; !exists {
			closed := false
			defs[defName] = &Schema{Type: "object", AdditionalProperties: &closed}
			defs[defName].Properties = structToProperties(t, defs)
		}

		return &Schema{Ref: "#/definitions/" + defName}

	case reflect.Ptr:
		return typeToSchema(t.Elem(), defs)

	default:
		return &Schema{Type: "object"}
	}
}

func writeSchema(name string, schema *Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	path := filepath.Join(outputDir, name+".json")

	return os.WriteFile(path, data, 0o644)
}
