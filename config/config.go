//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Graph     GraphConfig     `yaml:"graph"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr           string        `yaml:"addr" validate:"required"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"`
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider" validate:"oneof=openai groq gemini"`
	Model       string  `yaml:"model" validate:"required"`
	APIKey      string  `yaml:"api_key" validate:"required"`
	BaseURL     string  `yaml:"base_url" validate:"omitempty,url"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxRetries  int     `yaml:"max_retries" validate:"gte=0,lte=10"`
}

// SearchConfig configures the web search backend.
type SearchConfig struct {
	Backend       string  `yaml:"backend" validate:"oneof=exa google"`
	APIKey        string  `yaml:"api_key" validate:"required"`
	EngineID      string  `yaml:"engine_id" validate:"required_if=Backend google"`
	BaseURL       string  `yaml:"base_url" validate:"omitempty,url"`
	UserLocation  string  `yaml:"user_location" validate:"len=2,alpha"`
	NumResults    int     `yaml:"num_results" validate:"min=1,max=5"`
	RatePerSecond float64 `yaml:"rate_per_second" validate:"gte=0"`
	// Tools restricts the exposed search tools by name. Empty keeps all.
	Tools []string `yaml:"tools" validate:"dive,required"`
}

// GraphConfig configures the research graph.
type GraphConfig struct {
	Variant             string        `yaml:"variant" validate:"oneof=sequential parallel"`
	MaxSteps            int           `yaml:"max_steps" validate:"min=1"`
	NodeTimeout         time.Duration `yaml:"node_timeout" validate:"gte=0"`
	MaxRounds           int           `yaml:"max_rounds" validate:"min=1"`
	ToolErrorsAsResults bool          `yaml:"tool_errors_as_results"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Protocol        string `yaml:"protocol" validate:"oneof=grpc http"`
	TracesEndpoint  string `yaml:"traces_endpoint"`
	MetricsEndpoint string `yaml:"metrics_endpoint"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error fatal"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8000",
			CORSOrigins:    []string{"*"},
			RequestTimeout: 5 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			MaxRetries:  2,
		},
		Search: SearchConfig{
			Backend:       "exa",
			UserLocation:  "IN",
			NumResults:    5,
			RatePerSecond: 5,
		},
		Graph: GraphConfig{
			Variant:     "sequential",
			MaxSteps:    1000,
			NodeTimeout: 60 * time.Second,
			MaxRounds:   10,
		},
		Telemetry: TelemetryConfig{
			Protocol: "grpc",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

var validate = validator.New()

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Errorf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %w", errors.Join(msgs...))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnv fills credentials from the environment and lets a few
// variables override the file.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	env := func(key string) string {
		v, _ := lookup(key)
		return v
	}
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case ProviderOpenAI:
			c.LLM.APIKey = env("OPENAI_API_KEY")
		case ProviderGroq:
			c.LLM.APIKey = env("GROQ_API_KEY")
		case ProviderGemini:
			c.LLM.APIKey = env("GEMINI_API_KEY")
		}
	}
	if v := env("OPENAI_BASE_URL"); v != "" && c.LLM.Provider == ProviderOpenAI {
		c.LLM.BaseURL = v
	}
	if c.Search.APIKey == "" {
		switch c.Search.Backend {
		case "exa":
			c.Search.APIKey = env("EXA_API_KEY")
		case "google":
			c.Search.APIKey = env("GOOGLE_CSE_API_KEY")
		}
	}
	if c.Search.EngineID == "" {
		c.Search.EngineID = env("GOOGLE_CSE_ENGINE_ID")
	}
	if v := env("USER_LOCATION"); v != "" {
		c.Search.UserLocation = v
	}
	if v := env("VECTOR_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}
