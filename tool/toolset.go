//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

import "context"

// ToolSet groups tools that share a backend and its resources.
type ToolSet interface {
	// Tools returns the tools available in the set.
	Tools(context.Context) []Tool

	// Close releases any resources held by the ToolSet.
	Close() error

	// Name returns the name of the ToolSet.
	Name() string
}

// ToolFilter reports whether a tool with the given name is kept.
type ToolFilter func(string) bool

// FilterTools wraps toolset so only tools accepted by filter are exposed.
func FilterTools(toolset ToolSet, filter ToolFilter) ToolSet {
	return &filteredToolSet{
		original: toolset,
		filter:   filter,
	}
}

type filteredToolSet struct {
	original ToolSet
	filter   ToolFilter
}

func (f *filteredToolSet) Tools(ctx context.Context) []Tool {
	originalTools := f.original.Tools(ctx)
	if f.filter == nil {
		return originalTools
	}
	var result []Tool
	for _, t := range originalTools {
		if f.filter(t.Declaration().Name) {
			result = append(result, t)
		}
	}
	return result
}

func (f *filteredToolSet) Close() error { return f.original.Close() }

func (f *filteredToolSet) Name() string { return f.original.Name() }

// Callables collects the callable tools of one or more sets, keyed by name.
// A later set wins when two sets expose the same name.
func Callables(ctx context.Context, sets ...ToolSet) map[string]CallableTool {
	out := make(map[string]CallableTool)
	for _, set := range sets {
		for _, t := range set.Tools(ctx) {
			if c, ok := t.(CallableTool); ok {
				out[c.Declaration().Name] = c
			}
		}
	}
	return out
}
