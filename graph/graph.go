//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package graph provides a state graph engine similar to LangGraph: nodes
// read a shared State, return partial updates that are merged through
// per-field reducers, and static or conditional edges choose the next node
// until the End sentinel is reached.
package graph

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Sentinels for the virtual entry and terminal nodes.
const (
	Start = "__start__"
	End   = "__end__"
)

// State is the record threaded through a run. A key that is absent or
// holds nil is "not yet populated".
type State map[string]any

// Clone returns a shallow copy of the state.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// Has reports whether key is populated.
func (s State) Has(key string) bool {
	v, ok := s[key]
	return ok && v != nil
}

// GetStateValue returns the value stored under key as T.
func GetStateValue[T any](s State, key string) (T, bool) {
	v, ok := s[key].(T)
	return v, ok
}

// NodeFunc processes a snapshot of the state and returns the fields to merge.
type NodeFunc func(ctx context.Context, state State) (State, error)

// RouterFunc picks the key of the next node from the state. Routers must
// be pure: the same state always yields the same key.
type RouterFunc func(state State) string

// Node is a registered processing step.
type Node struct {
	ID          string
	Description string
	Function    NodeFunc
	// Owns lists the fields the node may write. nil leaves the node
	// unrestricted; an empty non-nil list makes it read-only.
	Owns []string
	// Timeout overrides the executor's per-node timeout when positive.
	Timeout time.Duration
}

func (n *Node) owns(field string) bool {
	if n.Owns == nil {
		return true
	}
	for _, f := range n.Owns {
		if f == field {
			return true
		}
	}
	return false
}

type conditionalEdge struct {
	router    RouterFunc
	pathMap   map[string]string
	routeKeys []string
}

// Graph is a compiled, immutable graph. It carries no per-run data and can
// be shared by concurrent executors.
type Graph struct {
	schema      *StateSchema
	entry       string
	nodes       map[string]*Node
	edges       map[string]string
	conditional map[string]*conditionalEdge
}

// clone returns a deep copy of g, so a compiled graph never shares maps
// or slices with the builder that produced it.
func (g *Graph) clone() *Graph {
	out := &Graph{
		schema:      g.schema,
		entry:       g.entry,
		nodes:       make(map[string]*Node, len(g.nodes)),
		edges:       make(map[string]string, len(g.edges)),
		conditional: make(map[string]*conditionalEdge, len(g.conditional)),
	}
	for id, n := range g.nodes {
		cp := *n
		if n.Owns != nil {
			cp.Owns = append([]string{}, n.Owns...)
		}
		out.nodes[id] = &cp
	}
	for from, to := range g.edges {
		out.edges[from] = to
	}
	for from, ce := range g.conditional {
		cp := &conditionalEdge{
			router:    ce.router,
			pathMap:   make(map[string]string, len(ce.pathMap)),
			routeKeys: append([]string(nil), ce.routeKeys...),
		}
		for k, v := range ce.pathMap {
			cp.pathMap[k] = v
		}
		out.conditional[from] = cp
	}
	return out
}

// Schema returns the state schema of the graph.
func (g *Graph) Schema() *StateSchema { return g.schema }

// EntryPoint returns the id of the first node.
func (g *Graph) EntryPoint() string { return g.entry }

// Node returns the node registered under id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeIDs returns the registered node ids in sorted order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Candidates returns the sorted candidate keys of the conditional edge
// leaving from, or nil when from has none.
func (g *Graph) Candidates(from string) []string {
	ce, ok := g.conditional[from]
	if !ok {
		return nil
	}
	return sortedKeys(ce.pathMap)
}

// next resolves the node that follows from.
func (g *Graph) next(from string, state State) (string, error) {
	if ce, ok := g.conditional[from]; ok {
		key, err := callRouter(ce.router, state)
		if err != nil {
			return "", &RoutingError{From: from, Reason: err.Error()}
		}
		target, ok := ce.pathMap[key]
		if !ok {
			return "", &RoutingError{From: from, Key: key, Candidates: sortedKeys(ce.pathMap)}
		}
		return target, nil
	}
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	return "", &RoutingError{From: from, Reason: "no outgoing edge"}
}

// callRouter runs router, turning a panic into an error.
func callRouter(router RouterFunc, state State) (key string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("router panicked: %v", r)
		}
	}()
	return router(state), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (g *Graph) String() string {
	return fmt.Sprintf("graph(entry=%s, nodes=%d)", g.entry, len(g.nodes))
}
