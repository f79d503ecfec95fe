//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "context"

// NodeCallbackContext identifies the node step a callback fires for.
type NodeCallbackContext struct {
	InvocationID string
	NodeID       string
	Step         int
}

// BeforeNodeCallback is called with the snapshot a node is about to read.
// A non-nil error aborts the run.
type BeforeNodeCallback = func(ctx context.Context, cbCtx *NodeCallbackContext, state State) error

// AfterNodeCallback is called after a node returns, before its update is
// merged. nodeErr is the error returned by the node, if any.
type AfterNodeCallback = func(
	ctx context.Context,
	cbCtx *NodeCallbackContext,
	update State,
	nodeErr error,
) error

// RouteCallback is called once the next node has been resolved.
type RouteCallback = func(ctx context.Context, cbCtx *NodeCallbackContext, next string)

// NodeCallbacks holds the callbacks of an executor.
type NodeCallbacks struct {
	BeforeNode []BeforeNodeCallback
	AfterNode  []AfterNodeCallback
	OnRoute    []RouteCallback
}

// NewNodeCallbacks creates an empty callback set.
func NewNodeCallbacks() *NodeCallbacks {
	return &NodeCallbacks{}
}

// RegisterBeforeNode registers a before node callback.
func (c *NodeCallbacks) RegisterBeforeNode(cb BeforeNodeCallback) *NodeCallbacks {
	c.BeforeNode = append(c.BeforeNode, cb)
	return c
}

// RegisterAfterNode registers an after node callback.
func (c *NodeCallbacks) RegisterAfterNode(cb AfterNodeCallback) *NodeCallbacks {
	c.AfterNode = append(c.AfterNode, cb)
	return c
}

// RegisterOnRoute registers a route callback.
func (c *NodeCallbacks) RegisterOnRoute(cb RouteCallback) *NodeCallbacks {
	c.OnRoute = append(c.OnRoute, cb)
	return c
}

func (c *NodeCallbacks) runBefore(ctx context.Context, cbCtx *NodeCallbackContext, state State) error {
	if c == nil {
		return nil
	}
	for _, cb := range c.BeforeNode {
		if err := cb(ctx, cbCtx, state); err != nil {
			return err
		}
	}
	return nil
}

func (c *NodeCallbacks) runAfter(ctx context.Context, cbCtx *NodeCallbackContext, update State, nodeErr error) error {
	if c == nil {
		return nil
	}
	for _, cb := range c.AfterNode {
		if err := cb(ctx, cbCtx, update, nodeErr); err != nil {
			return err
		}
	}
	return nil
}

func (c *NodeCallbacks) runRoute(ctx context.Context, cbCtx *NodeCallbackContext, next string) {
	if c == nil {
		return
	}
	for _, cb := range c.OnRoute {
		cb(ctx, cbCtx, next)
	}
}
