// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"reflect"
	"strings"
)

// Schema is the subset of JSON Schema used for function parameters.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Enum                 []string           `json:"enum,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
}

// SchemaFor derives a [Schema] from T using reflection.
func SchemaFor[T any]() *Schema {
	return schemaOf(reflect.TypeFor[T]())
}

func schemaOf(t reflect.Type) *Schema {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: schemaOf(t.Elem())}
	case reflect.Map:
		s := &Schema{Type: "object"}
		if t.Key().Kind() == reflect.String {
			s.AdditionalProperties = schemaOf(t.Elem())
		}
		return s
	case reflect.Struct:
		return structSchema(t)
	case reflect.Interface:
		return &Schema{Type: "object"}
	default:
		return &Schema{Type: "string"}
	}
}

func structSchema(t reflect.Type) *Schema {
	s := &Schema{Type: "object", Properties: map[string]*Schema{}}
	for field := range fields(t) {
		name, ok := fieldName(field)
		if !ok {
			continue
		}
		prop := schemaOf(field.Type)
		if applyTag(prop, field.Tag.Get("jsonschema")) {
			s.Required = append(s.Required, name)
		}
		s.Properties[name] = prop
	}
	return s
}

func fields(t reflect.Type) func(yield func(reflect.StructField) bool) {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			if f := t.Field(i); f.IsExported() && !yield(f) {
				return
			}
		}
	}
}

func fieldName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, true
	}
	return f.Name, true
}

// applyTag folds a `jsonschema` tag into prop and reports whether the field
// is required.
func applyTag(prop *Schema, tag string) (required bool) {
	if tag == "" {
		return false
	}
	for part := range strings.SplitSeq(tag, ",") {
		key, val, _ := strings.Cut(part, "=")
		switch strings.TrimSpace(key) {
		case "description":
			prop.Description = strings.TrimSpace(val)
		case "required":
			required = true
		case "enum":
			for v := range strings.SplitSeq(val, "|") {
				prop.Enum = append(prop.Enum, strings.TrimSpace(v))
			}
		}
	}
	return required
}
