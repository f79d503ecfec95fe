//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metric provides the OpenTelemetry instruments recorded by the
// graph executor and the tool loop.
package metric

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"trpc.group/trpc-go/vector-agent-go/telemetry"
)

// Metric names.
const (
	MetricGraphRuns      = "vector.graph.runs"
	MetricNodeExecutions = "vector.graph.node.executions"
	MetricNodeDuration   = "vector.graph.node.duration"
	MetricToolCalls      = "vector.tool.calls"
)

// Instruments recorded by the engine. They are no-ops until
// InitMeterProvider is called with a real provider.
var (
	GraphRuns      metric.Int64Counter
	NodeExecutions metric.Int64Counter
	NodeDuration   metric.Float64Histogram
	ToolCalls      metric.Int64Counter

	meterProvider metric.MeterProvider
)

func init() {
	if err := InitMeterProvider(noop.NewMeterProvider()); err != nil {
		panic(err)
	}
}

// InitMeterProvider creates the engine instruments from mp.
func InitMeterProvider(mp metric.MeterProvider) error {
	meter := mp.Meter(telemetry.InstrumentName)
	runs, err := meter.Int64Counter(MetricGraphRuns,
		metric.WithDescription("Number of graph invocations by outcome"),
		metric.WithUnit("1"))
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricGraphRuns, err)
	}
	nodes, err := meter.Int64Counter(MetricNodeExecutions,
		metric.WithDescription("Number of node executions"),
		metric.WithUnit("1"))
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricNodeExecutions, err)
	}
	duration, err := meter.Float64Histogram(MetricNodeDuration,
		metric.WithDescription("Duration of node executions"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricNodeDuration, err)
	}
	tools, err := meter.Int64Counter(MetricToolCalls,
		metric.WithDescription("Number of tool invocations"),
		metric.WithUnit("1"))
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricToolCalls, err)
	}
	GraphRuns, NodeExecutions, NodeDuration, ToolCalls = runs, nodes, duration, tools
	meterProvider = mp
	return nil
}

// GetMeterProvider returns the provider the instruments were created from.
func GetMeterProvider() metric.MeterProvider {
	return meterProvider
}

// NewMeterProvider creates an OTLP exporting meter provider.
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT are
// consulted when WithEndpoint is not given.
func NewMeterProvider(ctx context.Context, opts ...Option) (*sdkmetric.MeterProvider, error) {
	o := &options{
		serviceName:      telemetry.ServiceName,
		serviceVersion:   telemetry.ServiceVersion,
		serviceNamespace: telemetry.ServiceNamespace,
		protocol:         telemetry.ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metricsEndpoint == "" {
		o.metricsEndpoint = metricsEndpoint(o.protocol)
	}

	res, err := telemetry.NewResource(ctx, telemetry.ResourceOptions{
		ServiceName:      o.serviceName,
		ServiceVersion:   o.serviceVersion,
		ServiceNamespace: o.serviceNamespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch o.protocol {
	case telemetry.ProtocolHTTP:
		exporter, err = otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(o.metricsEndpoint),
			otlpmetrichttp.WithInsecure())
	default:
		conn, connErr := telemetry.NewGRPCConn(o.metricsEndpoint)
		if connErr != nil {
			return nil, connErr
		}
		exporter, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	), nil
}

func metricsEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	switch protocol {
	case telemetry.ProtocolHTTP:
		return "localhost:4318"
	default:
		return "localhost:4317"
	}
}

// Option configures NewMeterProvider.
type Option func(*options)

type options struct {
	metricsEndpoint  string
	protocol         string
	serviceName      string
	serviceVersion   string
	serviceNamespace string
}

// WithEndpoint sets the collector endpoint (host:port).
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.metricsEndpoint = endpoint }
}

// WithProtocol selects "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}
