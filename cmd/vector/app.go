//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/time/rate"

	"trpc.group/trpc-go/vector-agent-go/config"
	"trpc.group/trpc-go/vector-agent-go/graph"
	"trpc.group/trpc-go/vector-agent-go/log"
	"trpc.group/trpc-go/vector-agent-go/model"
	"trpc.group/trpc-go/vector-agent-go/model/gemini"
	"trpc.group/trpc-go/vector-agent-go/model/openai"
	"trpc.group/trpc-go/vector-agent-go/research"
	ametric "trpc.group/trpc-go/vector-agent-go/telemetry/metric"
	atrace "trpc.group/trpc-go/vector-agent-go/telemetry/trace"
	"trpc.group/trpc-go/vector-agent-go/tool"
	"trpc.group/trpc-go/vector-agent-go/tool/websearch"
)

// backend is a model serving both the structured steps and the tool loops.
type backend interface {
	model.StructuredCompleter
	model.ToolCaller
	Info() model.Info
}

// app holds everything built from one configuration.
type app struct {
	cfg     *config.Config
	service *research.Service
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log.Configure(log.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return newApp(ctx, cfg)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if cfg.Telemetry.Enabled {
		if err := a.startTelemetry(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	m, err := newBackend(ctx, cfg.LLM)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	tools, err := newSearchTools(ctx, cfg.Search)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	loopOpts := []graph.ToolLoopOption{graph.WithMaxRounds(cfg.Graph.MaxRounds)}
	if cfg.Graph.ToolErrorsAsResults {
		loopOpts = append(loopOpts, graph.WithToolErrorsAsResults())
	}
	workers, err := research.NewWorkers(m, m, tools,
		research.WithModelName(m.Info().Name),
		research.WithToolLoopOptions(loopOpts...),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	g, err := research.Build(cfg.Graph.Variant, workers)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.service, err = research.NewService(g,
		graph.WithMaxSteps(cfg.Graph.MaxSteps),
		graph.WithNodeTimeout(cfg.Graph.NodeTimeout),
		graph.WithNodeCallbacks(routeLogger()),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	log.Infof("research service ready: provider=%s model=%s search=%s variant=%s",
		cfg.LLM.Provider, cfg.LLM.Model, cfg.Search.Backend, cfg.Graph.Variant)
	return a, nil
}

// routeLogger logs every resolved transition at debug level.
func routeLogger() *graph.NodeCallbacks {
	return graph.NewNodeCallbacks().RegisterOnRoute(
		func(_ context.Context, cbCtx *graph.NodeCallbackContext, next string) {
			log.Debugf("graph run %s step %d: %s -> %s",
				cbCtx.InvocationID, cbCtx.Step, cbCtx.NodeID, next)
		})
}

func (a *app) startTelemetry(ctx context.Context) error {
	t := a.cfg.Telemetry
	traceOpts := []atrace.Option{atrace.WithProtocol(t.Protocol)}
	if t.TracesEndpoint != "" {
		traceOpts = append(traceOpts, atrace.WithEndpoint(t.TracesEndpoint))
	}
	clean, err := atrace.Start(ctx, traceOpts...)
	if err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}
	a.closers = append(a.closers, clean)

	metricOpts := []ametric.Option{ametric.WithProtocol(t.Protocol)}
	if t.MetricsEndpoint != "" {
		metricOpts = append(metricOpts, ametric.WithEndpoint(t.MetricsEndpoint))
	}
	mp, err := ametric.NewMeterProvider(ctx, metricOpts...)
	if err != nil {
		return fmt.Errorf("start metrics: %w", err)
	}
	a.closers = append(a.closers, func() error { return shutdownMeter(mp) })
	return ametric.InitMeterProvider(mp)
}

func shutdownMeter(mp *metric.MeterProvider) error {
	return mp.Shutdown(context.Background())
}

func newBackend(ctx context.Context, c config.LLMConfig) (backend, error) {
	switch c.Provider {
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithAPIKey(c.APIKey),
			openai.WithTemperature(c.Temperature),
			openai.WithMaxRetries(c.MaxRetries),
		}
		if c.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.BaseURL))
		}
		return openai.New(c.Model, opts...), nil
	case config.ProviderGroq:
		baseURL := c.BaseURL
		if baseURL == "" {
			baseURL = openai.GroqBaseURL
		}
		return openai.New(c.Model,
			openai.WithAPIKey(c.APIKey),
			openai.WithBaseURL(baseURL),
			openai.WithTemperature(c.Temperature),
			openai.WithMaxRetries(c.MaxRetries),
			openai.WithJSONObjectMode(true),
		), nil
	case config.ProviderGemini:
		opts := []gemini.Option{
			gemini.WithAPIKey(c.APIKey),
			gemini.WithTemperature(c.Temperature),
		}
		if c.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(c.BaseURL))
		}
		return gemini.New(ctx, c.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
	}
}

func newSearchTools(ctx context.Context, c config.SearchConfig) ([]tool.CallableTool, error) {
	opts := []websearch.Option{
		websearch.WithAPIKey(c.APIKey),
		websearch.WithEngineID(c.EngineID),
		websearch.WithUserLocation(c.UserLocation),
		websearch.WithNumResults(c.NumResults),
	}
	if c.BaseURL != "" {
		opts = append(opts, websearch.WithBaseURL(c.BaseURL))
	}
	if c.RatePerSecond > 0 {
		opts = append(opts, websearch.WithRateLimit(rate.NewLimiter(rate.Limit(c.RatePerSecond), 1)))
	}
	set, err := websearch.NewToolSet(ctx, c.Backend, opts...)
	if err != nil {
		return nil, err
	}
	var filtered tool.ToolSet = set
	if len(c.Tools) > 0 {
		allowed := make(map[string]bool, len(c.Tools))
		for _, name := range c.Tools {
			allowed[name] = true
		}
		filtered = tool.FilterTools(set, func(name string) bool { return allowed[name] })
	}
	byName := tool.Callables(ctx, filtered)
	if len(byName) == 0 {
		return nil, fmt.Errorf("no %s search tool matches %v", c.Backend, c.Tools)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	tools := make([]tool.CallableTool, 0, len(names))
	for _, name := range names {
		tools = append(tools, byName[name])
	}
	return tools, nil
}
