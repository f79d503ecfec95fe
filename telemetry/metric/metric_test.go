//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package metric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitMeterProviderRecords(t *testing.T) {
	defer func() { require.NoError(t, InitMeterProvider(noop.NewMeterProvider())) }()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	require.NoError(t, InitMeterProvider(mp))
	assert.Equal(t, mp, GetMeterProvider())

	ctx := context.Background()
	NodeExecutions.Add(ctx, 2, otelmetric.WithAttributes(attribute.String("node", "router")))
	GraphRuns.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", "ok")))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	found := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				found[m.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), found[MetricNodeExecutions])
	assert.Equal(t, int64(1), found[MetricGraphRuns])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, "localhost:4317", metricsEndpoint("grpc"))
	assert.Equal(t, "localhost:4318", metricsEndpoint("http"))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	assert.Equal(t, "collector:4317", metricsEndpoint("grpc"))
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "metrics:4317")
	assert.Equal(t, "metrics:4317", metricsEndpoint("grpc"))
}

func TestNewMeterProvider(t *testing.T) {
	for _, protocol := range []string{"grpc", "http"} {
		mp, err := NewMeterProvider(context.Background(), WithProtocol(protocol), WithEndpoint("localhost:1"))
		require.NoError(t, err)
		require.NotNil(t, mp)
		_ = mp.Shutdown(context.Background())
	}
}
