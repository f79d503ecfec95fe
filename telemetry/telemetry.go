//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the settings shared by the trace and metric
// exporters.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// telemetry service constants.
const (
	ServiceName      = "vector-agent-go"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-agent"
	InstrumentName   = "trpc.vector.go"

	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// ResourceOptions describes the service emitting telemetry.
type ResourceOptions struct {
	ServiceName      string
	ServiceVersion   string
	ServiceNamespace string
	Attributes       []attribute.KeyValue
}

// NewResource builds the otel resource for the service, merged with
// OTEL_RESOURCE_ATTRIBUTES and host information.
func NewResource(ctx context.Context, o ResourceOptions) (*resource.Resource, error) {
	opts := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNamespace(o.ServiceNamespace),
			semconv.ServiceName(o.ServiceName),
			semconv.ServiceVersion(o.ServiceVersion),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	}
	if len(o.Attributes) > 0 {
		opts = append(opts, resource.WithAttributes(o.Attributes...))
	}
	return resource.New(ctx, opts...)
}

// NewGRPCConn creates a client connection to the OpenTelemetry Collector.
// The connection is established lazily on first export.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(endpoint,
		// Note the use of insecure transport here. TLS is recommended in production.
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
