//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package jsonschema generates JSON schemas from Go types and validates
// documents against them. The generated schemas are plain maps so they can
// be handed to model providers, tool declarations and gojsonschema alike.
package jsonschema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"trpc.group/trpc-go/vector-agent-go/log"
)

// For returns the schema of T.
func For[T any]() map[string]any {
	var zero T
	return Generate(reflect.TypeOf(zero))
}

// Generate builds an object schema for t. Struct fields follow their json
// tags; fields that are neither pointers nor omitempty are required, and
// pointer fields are nullable. The jsonschema tag accepts description=...,
// enum=... (repeatable) and required.
func Generate(t reflect.Type) map[string]any {
	if t == nil {
		return map[string]any{"type": "object"}
	}
	return generate(t, map[reflect.Type]bool{})
}

func generate(t reflect.Type, inProgress map[reflect.Type]bool) map[string]any {
	switch t.Kind() {
	case reflect.Ptr:
		return generate(t.Elem(), inProgress)
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Slice, reflect.Array:
		return map[string]any{
			"type":  "array",
			"items": generate(t.Elem(), inProgress),
		}
	case reflect.Map:
		return map[string]any{
			"type":                 "object",
			"additionalProperties": generate(t.Elem(), inProgress),
		}
	case reflect.Struct:
		// Self referencing types degrade to a free-form object.
		if inProgress[t] {
			return map[string]any{"type": "object"}
		}
		inProgress[t] = true
		defer delete(inProgress, t)
		return structSchema(t, inProgress)
	default:
		return map[string]any{"type": "object"}
	}
}

func structSchema(t reflect.Type, inProgress map[reflect.Type]bool) map[string]any {
	properties := make(map[string]any)
	required := make([]string, 0)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonName(field)
		if skip {
			continue
		}
		fieldSchema := generate(field.Type, inProgress)
		if field.Type.Kind() == reflect.Ptr {
			// Pointer fields accept null.
			if typ, ok := fieldSchema["type"].(string); ok {
				fieldSchema["type"] = []any{typ, "null"}
			}
		}
		requiredByTag, err := applyTag(field.Type, field.Tag, fieldSchema)
		if err != nil {
			log.Errorf("jsonschema: field %s: %v", name, err)
		}
		if (field.Type.Kind() != reflect.Ptr && !omitEmpty) || requiredByTag {
			required = append(required, name)
		}
		properties[name] = fieldSchema
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonName(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name = field.Name
	if tag == "" {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// applyTag copies jsonschema tag settings onto schema and reports whether
// the tag marks the field as required.
func applyTag(fieldType reflect.Type, tag reflect.StructTag, schema map[string]any) (bool, error) {
	raw := tag.Get("jsonschema")
	if raw == "" {
		return false, nil
	}
	for fieldType.Kind() == reflect.Ptr {
		fieldType = fieldType.Elem()
	}
	required := false
	var enum []any
	for _, item := range strings.Split(raw, ",") {
		key, value, hasValue := strings.Cut(item, "=")
		switch {
		case !hasValue && key == "required":
			required = true
		case key == "description":
			schema["description"] = value
		case key == "enum":
			v, err := enumValue(fieldType, value)
			if err != nil {
				return required, err
			}
			enum = append(enum, v)
		}
	}
	if len(enum) > 0 {
		schema["enum"] = enum
	}
	return required, nil
}

func enumValue(fieldType reflect.Type, value string) (any, error) {
	switch fieldType.Kind() {
	case reflect.String:
		return value, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q: %w", value, err)
		}
		return v, nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q: %w", value, err)
		}
		return v, nil
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q: %w", value, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("enum tag unsupported for %v", fieldType)
	}
}

// Error lists every violation found while validating a document.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "schema validation failed: " + strings.Join(e.Problems, "; ")
}

// Validator validates documents against a compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// Compile prepares schema for repeated validation.
func Compile(schema map[string]any) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// MustCompile is like Compile but panics on an invalid schema.
func MustCompile(schema map[string]any) *Validator {
	v, err := Compile(schema)
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateJSON validates a raw JSON document.
func (v *Validator) ValidateJSON(document []byte) error {
	return v.validate(gojsonschema.NewBytesLoader(document))
}

// ValidateValue validates a Go value by its JSON encoding.
func (v *Validator) ValidateValue(value any) error {
	return v.validate(gojsonschema.NewGoLoader(value))
}

func (v *Validator) validate(loader gojsonschema.JSONLoader) error {
	result, err := v.schema.Validate(loader)
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &Error{Problems: problems}
}
