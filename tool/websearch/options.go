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
	"net/http"

	"golang.org/x/time/rate"
)

// Option configures a search backend.
type Option func(*config)

type config struct {
	apiKey       string
	engineID     string
	baseURL      string
	userLocation string
	numResults   int
	maxTextChars int
	httpClient   *http.Client
	limiter      *rate.Limiter
}

const (
	defaultUserLocation = "IN"
	defaultMaxTextChars = 2000
)

func newConfig(opts ...Option) *config {
	cfg := &config{
		userLocation: defaultUserLocation,
		numResults:   DefaultNumResults,
		maxTextChars: defaultMaxTextChars,
		// Five requests per second without bursts.
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithAPIKey sets the backend API key.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithEngineID sets the Google Programmable Search engine id.
func WithEngineID(id string) Option {
	return func(c *config) { c.engineID = id }
}

// WithBaseURL points the backend at another endpoint.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithUserLocation sets the two letter country code results are biased to.
func WithUserLocation(loc string) Option {
	return func(c *config) {
		if loc != "" {
			c.userLocation = loc
		}
	}
}

// WithNumResults sets how many results a query returns, clamped to
// 1..MaxNumResults.
func WithNumResults(n int) Option {
	return func(c *config) {
		switch {
		case n < 1:
			c.numResults = 1
		case n > MaxNumResults:
			c.numResults = MaxNumResults
		default:
			c.numResults = n
		}
	}
}

// WithMaxTextChars truncates page text to n characters. Zero keeps it whole.
func WithMaxTextChars(n int) Option {
	return func(c *config) { c.maxTextChars = n }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithRateLimit limits outgoing requests. A nil limiter disables limiting.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *config) { c.limiter = l }
}
