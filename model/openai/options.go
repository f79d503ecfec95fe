//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"net/http"
	"time"
)

const (
	// GroqBaseURL is the OpenAI compatible endpoint of Groq.
	GroqBaseURL = "https://api.groq.com/openai/v1"

	defaultTemperature = 0.1
	defaultMaxRetries  = 2
)

// Option configures a Model.
type Option func(*options)

type options struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	temperature *float64
	maxTokens   *int
	maxRetries  int
	timeout     time.Duration
	// jsonObjectMode replaces json_schema response formats with json_object
	// for providers that do not implement schema constrained decoding.
	jsonObjectMode bool
}

var defaultOptions = options{
	maxRetries: defaultMaxRetries,
}

// WithAPIKey sets the API key. When unset the client falls back to OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL points the client at an OpenAI compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTemperature sets the sampling temperature. Defaults to 0.1.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = &t }
}

// WithMaxTokens caps completion tokens.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = &n }
}

// WithMaxRetries sets how often the client retries transient failures.
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = n }
}

// WithRequestTimeout bounds each request, retries included.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithJSONObjectMode requests json_object output and carries the schema in
// the system prompt instead.
func WithJSONObjectMode(enabled bool) Option {
	return func(o *options) { o.jsonObjectMode = enabled }
}
