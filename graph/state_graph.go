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
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// StateGraph provides a fluent interface for building graphs.
//
// Example usage:
//
//	schema := NewStateSchema().AddField("counter", StateField{...})
//	g, err := NewStateGraph(schema).
//	  AddNode("increment", incrementFunc).
//	  SetEntryPoint("increment").
//	  SetFinishPoint("increment").
//	  Compile()
//
// Registration errors are collected and reported by Compile, so a chain
// of builder calls never needs intermediate checks.
type StateGraph struct {
	graph *Graph
	errs  []error
}

// NewStateGraph creates a new graph builder with the given state schema.
func NewStateGraph(schema *StateSchema) *StateGraph {
	return &StateGraph{
		graph: &Graph{
			schema:      schema,
			nodes:       make(map[string]*Node),
			edges:       make(map[string]string),
			conditional: make(map[string]*conditionalEdge),
		},
	}
}

// Option is a function that configures a Node.
type Option func(*Node)

// WithDescription sets the description of the node.
func WithDescription(description string) Option {
	return func(node *Node) {
		node.Description = description
	}
}

// WithOwnedFields restricts the node to writing the given fields. Called
// with no fields it makes the node read-only.
func WithOwnedFields(fields ...string) Option {
	return func(node *Node) {
		node.Owns = append([]string{}, fields...)
	}
}

// WithTimeout overrides the executor's per-node timeout for this node.
func WithTimeout(d time.Duration) Option {
	return func(node *Node) {
		node.Timeout = d
	}
}

// AddNode adds a node with the given ID and function.
func (sg *StateGraph) AddNode(id string, function NodeFunc, opts ...Option) *StateGraph {
	switch {
	case id == "":
		sg.errs = append(sg.errs, errors.New("node id must not be empty"))
		return sg
	case strings.HasPrefix(id, reservedPrefix):
		sg.errs = append(sg.errs, fmt.Errorf("node id %q uses the reserved prefix %q", id, reservedPrefix))
		return sg
	case function == nil:
		sg.errs = append(sg.errs, fmt.Errorf("node %q has a nil function", id))
		return sg
	}
	if _, exists := sg.graph.nodes[id]; exists {
		sg.errs = append(sg.errs, &DuplicateNodeError{NodeID: id})
		return sg
	}
	node := &Node{ID: id, Function: function}
	for _, opt := range opts {
		opt(node)
	}
	sg.graph.nodes[id] = node
	return sg
}

// AddEdge adds a static edge. An edge from Start sets the entry point.
func (sg *StateGraph) AddEdge(from, to string) *StateGraph {
	if from == Start {
		return sg.SetEntryPoint(to)
	}
	if prev, ok := sg.graph.edges[from]; ok && prev != to {
		sg.errs = append(sg.errs, fmt.Errorf("node %q already has a static edge to %q", from, prev))
		return sg
	}
	sg.graph.edges[from] = to
	return sg
}

// EdgeOption configures a conditional edge.
type EdgeOption func(*conditionalEdge)

// WithRouteKeys declares every key the router can return. Compile rejects
// declared keys that are missing from the path map.
func WithRouteKeys(keys ...string) EdgeOption {
	return func(ce *conditionalEdge) {
		ce.routeKeys = append([]string(nil), keys...)
	}
}

// AddConditionalEdges routes from a node through router. pathMap maps
// router keys to target node ids.
func (sg *StateGraph) AddConditionalEdges(
	from string,
	router RouterFunc,
	pathMap map[string]string,
	opts ...EdgeOption,
) *StateGraph {
	if _, ok := sg.graph.conditional[from]; ok {
		sg.errs = append(sg.errs, fmt.Errorf("node %q already has conditional edges", from))
		return sg
	}
	ce := &conditionalEdge{router: router, pathMap: make(map[string]string, len(pathMap))}
	for k, v := range pathMap {
		ce.pathMap[k] = v
	}
	for _, opt := range opts {
		opt(ce)
	}
	sg.graph.conditional[from] = ce
	return sg
}

// SetEntryPoint sets the first node of the graph.
func (sg *StateGraph) SetEntryPoint(nodeID string) *StateGraph {
	sg.graph.entry = nodeID
	return sg
}

// SetFinishPoint adds an edge from nodeID to End.
func (sg *StateGraph) SetFinishPoint(nodeID string) *StateGraph {
	return sg.AddEdge(nodeID, End)
}

// Compile validates the graph and returns it. Either every registration
// and structural problem is reported or the graph is returned ready to run.
func (sg *StateGraph) Compile() (*Graph, error) {
	if len(sg.errs) > 0 {
		return nil, errors.Join(sg.errs...)
	}
	if problems := sg.validate(); len(problems) > 0 {
		return nil, &GraphValidationError{Problems: problems}
	}
	return sg.graph.clone(), nil
}

// MustCompile compiles the graph or panics.
func (sg *StateGraph) MustCompile() *Graph {
	g, err := sg.Compile()
	if err != nil {
		panic(err)
	}
	return g
}

func (sg *StateGraph) validate() []string {
	g := sg.graph
	var problems []string
	known := func(id string) bool {
		_, ok := g.nodes[id]
		return ok || id == End
	}
	if g.schema == nil {
		problems = append(problems, "state schema is nil")
	}
	switch {
	case g.entry == "":
		problems = append(problems, "entry point is not set")
	case !known(g.entry) || g.entry == End:
		problems = append(problems, fmt.Sprintf("entry point %q is not a registered node", g.entry))
	}
	for _, from := range sortedKeys(g.edges) {
		to := g.edges[from]
		if _, ok := g.nodes[from]; !ok {
			problems = append(problems, fmt.Sprintf("edge from unknown node %q", from))
		}
		if !known(to) {
			problems = append(problems, fmt.Sprintf("edge from %q targets unknown node %q", from, to))
		}
		if _, ok := g.conditional[from]; ok {
			problems = append(problems, fmt.Sprintf("node %q has both a static and a conditional edge", from))
		}
	}
	for _, from := range sortedConditional(g.conditional) {
		ce := g.conditional[from]
		if _, ok := g.nodes[from]; !ok {
			problems = append(problems, fmt.Sprintf("conditional edge from unknown node %q", from))
		}
		if ce.router == nil {
			problems = append(problems, fmt.Sprintf("conditional edge from %q has a nil router", from))
		}
		if len(ce.pathMap) == 0 {
			problems = append(problems, fmt.Sprintf("conditional edge from %q has an empty path map", from))
		}
		for _, key := range sortedKeys(ce.pathMap) {
			if to := ce.pathMap[key]; !known(to) {
				problems = append(problems, fmt.Sprintf("route %q from %q targets unknown node %q", key, from, to))
			}
		}
		for _, key := range ce.routeKeys {
			if _, ok := ce.pathMap[key]; !ok {
				problems = append(problems, fmt.Sprintf("route key %q from %q has no target", key, from))
			}
		}
	}
	if g.schema != nil {
		for _, id := range g.NodeIDs() {
			for _, field := range g.nodes[id].Owns {
				if _, ok := g.schema.Field(field); !ok {
					problems = append(problems, fmt.Sprintf("node %q owns undeclared field %q", id, field))
				}
			}
		}
	}
	if len(problems) > 0 {
		return problems
	}
	return append(problems, sg.checkReachability()...)
}

// checkReachability walks every edge from the entry point. End must be
// reachable and every reachable node needs an outgoing edge.
func (sg *StateGraph) checkReachability() []string {
	g := sg.graph
	var problems []string
	seen := map[string]bool{g.entry: true}
	queue := []string{g.entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == End {
			continue
		}
		var targets []string
		if to, ok := g.edges[id]; ok {
			targets = append(targets, to)
		}
		if ce, ok := g.conditional[id]; ok {
			for _, key := range sortedKeys(ce.pathMap) {
				targets = append(targets, ce.pathMap[key])
			}
		}
		if len(targets) == 0 {
			problems = append(problems, fmt.Sprintf("node %q has no outgoing edge", id))
		}
		for _, t := range targets {
			if !seen[t] {
				seen[t] = true
				queue = append(queue, t)
			}
		}
	}
	if !seen[End] {
		problems = append(problems, "end is not reachable from the entry point")
	}
	return problems
}

func sortedConditional(m map[string]*conditionalEdge) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
