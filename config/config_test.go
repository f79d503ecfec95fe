//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func withKeys(c *Config) *Config {
	c.LLM.APIKey = "llm-key"
	c.Search.APIKey = "search-key"
	return c
}

func TestDefaultIsValidWithKeys(t *testing.T) {
	c := withKeys(Default())
	require.NoError(t, c.Validate())
	assert.Equal(t, 1000, c.Graph.MaxSteps)
	assert.Equal(t, 10, c.Graph.MaxRounds)
	assert.Equal(t, 60*time.Second, c.Graph.NodeTimeout)
	assert.Equal(t, "IN", c.Search.UserLocation)
	assert.InDelta(t, 0.1, c.LLM.Temperature, 1e-9)
}

func TestDefaultMissingKeys(t *testing.T) {
	err := Default().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM.APIKey")
	assert.Contains(t, err.Error(), "Search.APIKey")
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"provider", func(c *Config) { c.LLM.Provider = "anthropic" }, "LLM.Provider"},
		{"backend", func(c *Config) { c.Search.Backend = "bing" }, "Search.Backend"},
		{"num results", func(c *Config) { c.Search.NumResults = 6 }, "Search.NumResults"},
		{"location", func(c *Config) { c.Search.UserLocation = "IND" }, "Search.UserLocation"},
		{"variant", func(c *Config) { c.Graph.Variant = "dag" }, "Graph.Variant"},
		{"max steps", func(c *Config) { c.Graph.MaxSteps = 0 }, "Graph.MaxSteps"},
		{"max rounds", func(c *Config) { c.Graph.MaxRounds = 0 }, "Graph.MaxRounds"},
		{"temperature", func(c *Config) { c.LLM.Temperature = 3 }, "LLM.Temperature"},
		{"google engine", func(c *Config) { c.Search.Backend = "google" }, "Search.EngineID"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "Log.Level"},
		{"tool name", func(c *Config) { c.Search.Tools = []string{""} }, "Search.Tools[0]"},
		{"base url", func(c *Config) { c.LLM.BaseURL = "not a url" }, "LLM.BaseURL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := withKeys(Default())
			tt.mut(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestApplyEnvByProvider(t *testing.T) {
	env := mapEnv(map[string]string{
		"OPENAI_API_KEY":       "oa",
		"GROQ_API_KEY":         "gq",
		"GEMINI_API_KEY":       "gm",
		"EXA_API_KEY":          "exa",
		"GOOGLE_CSE_API_KEY":   "cse",
		"GOOGLE_CSE_ENGINE_ID": "cx",
		"USER_LOCATION":        "US",
		"VECTOR_LOG_LEVEL":     "debug",
	})

	c := Default()
	c.applyEnv(env)
	assert.Equal(t, "oa", c.LLM.APIKey)
	assert.Equal(t, "exa", c.Search.APIKey)
	assert.Equal(t, "cx", c.Search.EngineID)
	assert.Equal(t, "US", c.Search.UserLocation)
	assert.Equal(t, "debug", c.Log.Level)

	c = Default()
	c.LLM.Provider = ProviderGroq
	c.Search.Backend = "google"
	c.applyEnv(env)
	assert.Equal(t, "gq", c.LLM.APIKey)
	assert.Equal(t, "cse", c.Search.APIKey)

	c = Default()
	c.LLM.Provider = ProviderGemini
	c.applyEnv(env)
	assert.Equal(t, "gm", c.LLM.APIKey)
}

func TestApplyEnvKeepsFileKeys(t *testing.T) {
	c := withKeys(Default())
	c.applyEnv(mapEnv(map[string]string{"OPENAI_API_KEY": "env"}))
	assert.Equal(t, "llm-key", c.LLM.APIKey)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"USER_LOCATION", "VECTOR_LOG_LEVEL", "OPENAI_BASE_URL", "GOOGLE_CSE_ENGINE_ID"} {
		t.Setenv(k, "")
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "vector.yaml")
	data := `
server:
  addr: ":9090"
llm:
  provider: groq
  model: llama-3.3-70b-versatile
  api_key: k1
search:
  backend: exa
  api_key: k2
  num_results: 3
graph:
  variant: parallel
  node_timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, ProviderGroq, c.LLM.Provider)
	assert.Equal(t, "llama-3.3-70b-versatile", c.LLM.Model)
	assert.Equal(t, 3, c.Search.NumResults)
	assert.Equal(t, "parallel", c.Graph.Variant)
	assert.Equal(t, 30*time.Second, c.Graph.NodeTimeout)
	assert.Equal(t, 1000, c.Graph.MaxSteps)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")

	path = filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: a\nsearch:\n  api_key: b\n  num_results: 9\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Search.NumResults")
}
