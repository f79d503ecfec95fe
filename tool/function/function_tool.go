//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package function wraps plain Go functions as callable tools.
package function

import (
	"context"
	"encoding/json"
	"fmt"

	"trpc.group/trpc-go/vector-agent-go/internal/jsonschema"
	"trpc.group/trpc-go/vector-agent-go/log"
	"trpc.group/trpc-go/vector-agent-go/tool"
)

// FunctionTool adapts fn to tool.CallableTool. Arguments arrive as JSON,
// are checked against the input schema and decoded into I.
type FunctionTool[I, O any] struct {
	name        string
	description string
	inputSchema tool.Schema
	validator   *jsonschema.Validator
	fn          func(context.Context, I) (O, error)
}

// Option configures a FunctionTool.
type Option func(*functionToolOptions)

type functionToolOptions struct {
	name        string
	description string
	inputSchema tool.Schema
}

// WithName sets the name of the function tool.
//
// Note: model APIs commonly restrict tool names to ^[a-zA-Z0-9_-]+$.
func WithName(name string) Option {
	return func(opts *functionToolOptions) {
		opts.name = name
	}
}

// WithDescription sets the description of the function tool.
func WithDescription(description string) Option {
	return func(opts *functionToolOptions) {
		opts.description = description
	}
}

// WithInputSchema overrides the schema generated from I.
func WithInputSchema(schema tool.Schema) Option {
	return func(opts *functionToolOptions) {
		opts.inputSchema = schema
	}
}

// NewFunctionTool creates a FunctionTool around fn.
func NewFunctionTool[I, O any](fn func(context.Context, I) (O, error), opts ...Option) *FunctionTool[I, O] {
	options := &functionToolOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.name == "" {
		log.Warnf("FunctionTool: name is empty")
	}
	if options.description == "" {
		log.Warnf("FunctionTool: description is empty")
	}
	schema := options.inputSchema
	if schema == nil {
		schema = tool.Schema(jsonschema.For[I]())
	}
	validator, err := jsonschema.Compile(schema)
	if err != nil {
		// An uncompilable schema still describes the tool; decoding alone guards the input.
		log.Warnf("FunctionTool %s: %v", options.name, err)
	}
	return &FunctionTool[I, O]{
		name:        options.name,
		description: options.description,
		inputSchema: schema,
		validator:   validator,
		fn:          fn,
	}
}

// Call decodes jsonArgs into I and invokes the wrapped function.
func (ft *FunctionTool[I, O]) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	if len(jsonArgs) == 0 {
		jsonArgs = []byte("{}")
	}
	if ft.validator != nil {
		if err := ft.validator.ValidateJSON(jsonArgs); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", ft.name, err)
		}
	}
	var input I
	if err := json.Unmarshal(jsonArgs, &input); err != nil {
		return nil, fmt.Errorf("decode arguments for %s: %w", ft.name, err)
	}
	return ft.fn(ctx, input)
}

// Declaration returns the tool's name, description and input schema.
func (ft *FunctionTool[I, O]) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:        ft.name,
		Description: ft.description,
		InputSchema: ft.inputSchema,
	}
}
