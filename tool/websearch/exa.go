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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

const defaultExaBaseURL = "https://api.exa.ai"

type exaClient struct {
	cfg      *config
	endpoint string
}

type exaRequest struct {
	Query        string      `json:"query"`
	Type         string      `json:"type"`
	NumResults   int         `json:"numResults"`
	UserLocation string      `json:"userLocation,omitempty"`
	Contents     exaContents `json:"contents"`
}

type exaContents struct {
	Text bool `json:"text"`
}

type exaResponse struct {
	Results []struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		Text          string `json:"text"`
		PublishedDate string `json:"publishedDate"`
	} `json:"results"`
	Error string `json:"error"`
}

func newExa(cfg *config) (*exaClient, error) {
	if cfg.apiKey == "" {
		return nil, errors.New("exa api key is empty")
	}
	base := cfg.baseURL
	if base == "" {
		base = defaultExaBaseURL
	}
	return &exaClient{cfg: cfg, endpoint: strings.TrimRight(base, "/") + "/search"}, nil
}

// Search implements Searcher.
func (c *exaClient) Search(ctx context.Context, query string) ([]Result, error) {
	if c.cfg.limiter != nil {
		if err := c.cfg.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	body, err := json.Marshal(exaRequest{
		Query:        query,
		Type:         "auto",
		NumResults:   c.cfg.numResults,
		UserLocation: c.cfg.userLocation,
		Contents:     exaContents{Text: true},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.apiKey)

	client := c.cfg.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	rsp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exa search: %w", err)
	}
	defer rsp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(rsp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read exa response: %w", err)
	}
	var out exaResponse
	if rsp.StatusCode != http.StatusOK {
		if json.Unmarshal(raw, &out) == nil && out.Error != "" {
			return nil, fmt.Errorf("exa search: status %d: %s", rsp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("exa search: status %d", rsp.StatusCode)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode exa response: %w", err)
	}
	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		if len(results) == c.cfg.numResults {
			break
		}
		results = append(results, Result{
			Title:     r.Title,
			URL:       r.URL,
			Text:      truncate(r.Text, c.cfg.maxTextChars),
			Published: r.PublishedDate,
		})
	}
	return results, nil
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
