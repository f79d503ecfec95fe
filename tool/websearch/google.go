//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type googleClient struct {
	cfg *config
	srv *customsearch.Service
}

func newGoogle(ctx context.Context, cfg *config) (*googleClient, error) {
	if cfg.apiKey == "" {
		return nil, errors.New("google api key is empty")
	}
	if cfg.engineID == "" {
		return nil, errors.New("google engine id is empty")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.apiKey)}
	if cfg.baseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.httpClient))
	}
	srv, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create custom search service: %w", err)
	}
	return &googleClient{cfg: cfg, srv: srv}, nil
}

// Search implements Searcher.
func (c *googleClient) Search(ctx context.Context, query string) ([]Result, error) {
	if c.cfg.limiter != nil {
		if err := c.cfg.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	call := c.srv.Cse.List().Context(ctx).Cx(c.cfg.engineID).Q(query).Num(int64(c.cfg.numResults))
	if c.cfg.userLocation != "" {
		call = call.Gl(strings.ToLower(c.cfg.userLocation))
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}
	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		text := item.Snippet
		if desc, ok := pageDescription(item.Pagemap); ok {
			text = desc
		}
		results = append(results, Result{
			Title: item.Title,
			URL:   item.Link,
			Text:  truncate(text, c.cfg.maxTextChars),
		})
	}
	return results, nil
}

// pageDescription extracts the description meta tags of a result.
func pageDescription(pageMap googleapi.RawMessage) (string, bool) {
	if len(pageMap) == 0 {
		return "", false
	}
	var pages struct {
		MetaTags []map[string]any `json:"metatags"`
	}
	if err := json.Unmarshal(pageMap, &pages); err != nil {
		return "", false
	}
	var descs []string
	for _, tags := range pages.MetaTags {
		if d, ok := tags["description"].(string); ok && d != "" {
			descs = append(descs, d)
			continue
		}
		if d, ok := tags["og:description"].(string); ok && d != "" {
			descs = append(descs, d)
		}
	}
	return strings.Join(descs, "\n"), len(descs) > 0
}
