//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package websearch provides the web search tools used by the product
// search loop. Two backends are available: the Exa search API and Google
// Programmable Search.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/vector-agent-go/tool"
	"trpc.group/trpc-go/vector-agent-go/tool/function"
)

// Backend names.
const (
	BackendExa    = "exa"
	BackendGoogle = "google"
)

// Result bounds.
const (
	DefaultNumResults = 5
	MaxNumResults     = 5
)

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("search query is empty")

// Result is one search hit.
type Result struct {
	Title     string `json:"title,omitempty"`
	URL       string `json:"url"`
	Text      string `json:"text,omitempty"`
	Published string `json:"published,omitempty"`
}

// Searcher runs a query against a search backend.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

type searchRequest struct {
	Query string `json:"query" jsonschema:"description=The web search query describing the products to look for"`
}

type searchResponse struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// NewTool wraps s as a callable tool named name.
func NewTool(s Searcher, name, description string) tool.CallableTool {
	return function.NewFunctionTool(
		func(ctx context.Context, req searchRequest) (searchResponse, error) {
			q := strings.TrimSpace(req.Query)
			if q == "" {
				return searchResponse{}, ErrEmptyQuery
			}
			results, err := s.Search(ctx, q)
			if err != nil {
				return searchResponse{}, err
			}
			if results == nil {
				results = []Result{}
			}
			return searchResponse{Query: q, Results: results}, nil
		},
		function.WithName(name),
		function.WithDescription(description),
	)
}

// ToolSet exposes a single search tool backed by one Searcher.
type ToolSet struct {
	name  string
	tools []tool.Tool
}

// NewToolSet creates the tool set of backend, either BackendExa or
// BackendGoogle. Options not relevant to the backend are ignored.
func NewToolSet(ctx context.Context, backend string, opts ...Option) (*ToolSet, error) {
	cfg := newConfig(opts...)
	switch backend {
	case BackendExa:
		c, err := newExa(cfg)
		if err != nil {
			return nil, err
		}
		return &ToolSet{
			name:  BackendExa,
			tools: []tool.Tool{NewTool(c, "exa_search", "Searches the web for products and returns the page text of the top results.")},
		}, nil
	case BackendGoogle:
		c, err := newGoogle(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &ToolSet{
			name:  BackendGoogle,
			tools: []tool.Tool{NewTool(c, "google_search", "Searches Google for products and returns titles, links and snippets.")},
		}, nil
	default:
		return nil, fmt.Errorf("unknown search backend %q", backend)
	}
}

// Tools implements tool.ToolSet.
func (ts *ToolSet) Tools(context.Context) []tool.Tool { return ts.tools }

// Close implements tool.ToolSet.
func (ts *ToolSet) Close() error { return nil }

// Name implements tool.ToolSet.
func (ts *ToolSet) Name() string { return ts.name }
