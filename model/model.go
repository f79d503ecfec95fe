//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines conversation messages and the two external
// capabilities the research graph depends on: structured completion and
// tool-calling decisions.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"trpc.group/trpc-go/vector-agent-go/internal/jsonschema"
	"trpc.group/trpc-go/vector-agent-go/tool"
)

// Info describes a model backend.
type Info struct {
	Name string
}

// OutputSchema is the target schema of a structured completion.
type OutputSchema struct {
	Name        string
	Description string
	Schema      map[string]any
	// Strict asks providers that support it to enforce the schema while decoding.
	Strict bool
}

// NewOutputSchema derives an OutputSchema from T.
func NewOutputSchema[T any](name, description string) *OutputSchema {
	return &OutputSchema{
		Name:        name,
		Description: description,
		Schema:      jsonschema.For[T](),
	}
}

// StructuredCompleter turns free text into a JSON document that conforms
// to the requested schema.
type StructuredCompleter interface {
	CompleteStructured(ctx context.Context, messages []Message, schema *OutputSchema) ([]byte, error)
}

// ToolCaller produces the next assistant message of a tool loop: either a
// batch of tool calls or a final natural language answer.
type ToolCaller interface {
	Decide(ctx context.Context, messages []Message, tools []*tool.Declaration) (Message, error)
}

// ErrEmptyCompletion is returned when a provider answers without content.
var ErrEmptyCompletion = errors.New("model returned no content")

// CompletionError reports a failed call to a completion capability.
type CompletionError struct {
	Model string
	Cause error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion by %s failed: %v", e.Model, e.Cause)
}

func (e *CompletionError) Unwrap() error { return e.Cause }

// CompleteInto runs a structured completion, validates the document
// against schema and decodes it into T. Every failure is a *CompletionError.
func CompleteInto[T any](
	ctx context.Context,
	c StructuredCompleter,
	modelName string,
	messages []Message,
	schema *OutputSchema,
) (T, error) {
	var out T
	raw, err := c.CompleteStructured(ctx, messages, schema)
	if err != nil {
		var ce *CompletionError
		if errors.As(err, &ce) {
			return out, err
		}
		return out, &CompletionError{Model: modelName, Cause: err}
	}
	if len(raw) == 0 {
		return out, &CompletionError{Model: modelName, Cause: ErrEmptyCompletion}
	}
	if schema != nil && schema.Schema != nil {
		v, err := jsonschema.Compile(schema.Schema)
		if err != nil {
			return out, &CompletionError{Model: modelName, Cause: err}
		}
		if err := v.ValidateJSON(raw); err != nil {
			return out, &CompletionError{Model: modelName, Cause: err}
		}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &CompletionError{Model: modelName, Cause: fmt.Errorf("decode %s: %w", schemaName(schema), err)}
	}
	return out, nil
}

func schemaName(s *OutputSchema) string {
	if s == nil || s.Name == "" {
		return "output"
	}
	return s.Name
}
