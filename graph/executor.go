//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/vector-agent-go/log"
	"trpc.group/trpc-go/vector-agent-go/telemetry/metric"
	"trpc.group/trpc-go/vector-agent-go/telemetry/trace"
)

// DefaultMaxSteps bounds the number of node executions of one run.
const DefaultMaxSteps = 1000

// Executor runs a compiled graph. One executor serves any number of
// concurrent Invoke calls; each call owns its own state.
type Executor struct {
	graph       *Graph
	maxSteps    int
	nodeTimeout time.Duration
	callbacks   *NodeCallbacks
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*ExecutorOptions)

// ExecutorOptions contains configuration options for creating an Executor.
type ExecutorOptions struct {
	// MaxSteps is the cycle bound (default: 1000).
	MaxSteps int
	// NodeTimeout bounds every node without its own timeout. Zero disables it.
	NodeTimeout time.Duration
	// Callbacks observe node execution.
	Callbacks *NodeCallbacks
}

// WithMaxSteps sets the cycle bound.
func WithMaxSteps(n int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.MaxSteps = n
	}
}

// WithNodeTimeout sets the default per-node timeout.
func WithNodeTimeout(d time.Duration) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.NodeTimeout = d
	}
}

// WithNodeCallbacks installs node callbacks.
func WithNodeCallbacks(cb *NodeCallbacks) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Callbacks = cb
	}
}

// NewExecutor creates a new graph executor.
func NewExecutor(g *Graph, opts ...ExecutorOption) (*Executor, error) {
	if g == nil {
		return nil, errors.New("graph is nil")
	}
	options := ExecutorOptions{MaxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(&options)
	}
	if options.MaxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be positive, got %d", options.MaxSteps)
	}
	return &Executor{
		graph:       g,
		maxSteps:    options.MaxSteps,
		nodeTimeout: options.NodeTimeout,
		callbacks:   options.Callbacks,
	}, nil
}

// Graph returns the graph run by the executor.
func (e *Executor) Graph() *Graph { return e.graph }

// Invoke runs the graph from its entry point until End is reached and
// returns the terminal state. When the run fails the returned state is the
// last consistent snapshot with a *Failure stored under StateKeyFailure,
// and the error describes the cause. The initial state is not modified.
func (e *Executor) Invoke(ctx context.Context, initial State) (State, error) {
	invocationID := uuid.NewString()
	ctx, span := trace.Tracer.Start(ctx, "execute_graph",
		oteltrace.WithAttributes(attribute.String("invocation.id", invocationID)))
	defer span.End()

	store, err := NewStore(e.graph.schema, initial)
	if err != nil {
		e.finishRun(ctx, span, "failed", err)
		return failedState(initial.Clone(), "", 0, err), err
	}

	current := e.graph.entry
	step := 0
	for current != End {
		if err := ctx.Err(); err != nil {
			return e.fail(ctx, span, store, current, step, err)
		}
		if step >= e.maxSteps {
			err := &CycleLimitError{Limit: e.maxSteps, Node: current}
			log.Warnf("graph run %s stopped: %v", invocationID, err)
			return e.fail(ctx, span, store, current, step, err)
		}
		step++
		cbCtx := &NodeCallbackContext{InvocationID: invocationID, NodeID: current, Step: step}
		if err := e.step(ctx, cbCtx, store); err != nil {
			return e.fail(ctx, span, store, current, step, err)
		}
		next, err := e.graph.next(current, store.Snapshot())
		if err != nil {
			return e.fail(ctx, span, store, current, step, err)
		}
		e.callbacks.runRoute(ctx, cbCtx, next)
		current = next
	}
	span.SetAttributes(attribute.Int("graph.steps", step))
	e.finishRun(ctx, span, "completed", nil)
	return store.Snapshot(), nil
}

// step executes one node and merges its update.
func (e *Executor) step(ctx context.Context, cbCtx *NodeCallbackContext, store *Store) error {
	node := e.graph.nodes[cbCtx.NodeID]
	ctx, span := trace.Tracer.Start(ctx, "execute_node "+node.ID,
		oteltrace.WithAttributes(
			attribute.String("node.id", node.ID),
			attribute.Int("node.step", cbCtx.Step),
		))
	defer span.End()

	snapshot := store.Snapshot()
	if err := e.callbacks.runBefore(ctx, cbCtx, snapshot); err != nil {
		return e.recordNode(ctx, span, node.ID, time.Now(), fmt.Errorf("before node callback: %w", err))
	}
	start := time.Now()
	update, err := e.runNode(ctx, node, snapshot)
	if cbErr := e.callbacks.runAfter(ctx, cbCtx, update, err); cbErr != nil && err == nil {
		err = fmt.Errorf("after node callback: %w", cbErr)
	}
	if err != nil {
		return e.recordNode(ctx, span, node.ID, start, err)
	}
	for _, field := range sortedStateKeys(update) {
		if !node.owns(field) {
			return e.recordNode(ctx, span, node.ID, start,
				&ValidationError{Field: field, Node: node.ID, Reason: "field not owned by node"})
		}
	}
	if err := store.Merge(update); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) && ve.Node == "" {
			ve.Node = node.ID
		}
		return e.recordNode(ctx, span, node.ID, start, err)
	}
	log.Debugf("node %s merged fields %v", node.ID, sortedStateKeys(update))
	return e.recordNode(ctx, span, node.ID, start, nil)
}

// runNode calls the node function under its timeout. A panicking node is
// reported as a NodeError.
func (e *Executor) runNode(ctx context.Context, node *Node, snapshot State) (State, error) {
	timeout := e.nodeTimeout
	if node.Timeout > 0 {
		timeout = node.Timeout
	}
	var (
		nodeCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		nodeCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		nodeCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type result struct {
		update State
		err    error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("node %s panicked: %v\n%s", node.ID, r, debug.Stack())
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		update, err := node.Function(nodeCtx, snapshot)
		done <- result{update: update, err: err}
	}()

	var res result
	select {
	case res = <-done:
		if res.err == nil {
			return res.update, nil
		}
	case <-nodeCtx.Done():
		res.err = nodeCtx.Err()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(nodeCtx.Err(), context.DeadlineExceeded) {
		return nil, &NodeTimeoutError{NodeID: node.ID, Timeout: timeout}
	}
	return nil, &NodeError{NodeID: node.ID, Cause: res.err}
}

func (e *Executor) recordNode(ctx context.Context, span oteltrace.Span, nodeID string, start time.Time, err error) error {
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("node.id", nodeID),
		attribute.String("status", status),
	)
	metric.NodeExecutions.Add(ctx, 1, attrs)
	metric.NodeDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	return err
}

func (e *Executor) fail(
	ctx context.Context,
	span oteltrace.Span,
	store *Store,
	node string,
	step int,
	err error,
) (State, error) {
	e.finishRun(ctx, span, "failed", err)
	return failedState(store.Snapshot(), node, step, err), err
}

func (e *Executor) finishRun(ctx context.Context, span oteltrace.Span, status string, err error) {
	attrs := []attribute.KeyValue{attribute.String("status", status)}
	if err != nil {
		kind := ClassifyError(err)
		attrs = append(attrs, attribute.String("failure.kind", string(kind)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metric.GraphRuns.Add(ctx, 1, otelmetric.WithAttributes(attrs...))
}

func failedState(state State, node string, step int, err error) State {
	state[StateKeyFailure] = &Failure{
		Node:    node,
		Kind:    ClassifyError(err),
		Message: err.Error(),
		Step:    step,
	}
	return state
}
