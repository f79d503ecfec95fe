//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package research

import (
	"context"

	"trpc.group/trpc-go/vector-agent-go/graph"
)

// Node ids of the research graph. The worker ids double as router keys.
const (
	NodeRouter      = "router"
	NodeSpecsAgent  = "specs_agent"
	NodeSearchAgent = "search_agent"
	NodeReviewAgent = "review_agent"
	NodeCombResults = "comb_results"
	NodeFanOut      = "fan_out"
)

// Route is the progress gate. It checks field presence in a fixed order
// and returns the key of the first missing step, or graph.End once the
// recommendation exists. It has no side effects, so repeated calls on the
// same state agree.
//
// A worker that computed an empty result still writes an empty, non-nil
// value, which counts as present. Only a field that was never written
// sends the run back to its worker.
func Route(state graph.State) string {
	switch {
	case !state.Has(KeyExtractedSpec):
		return NodeSpecsAgent
	case !state.Has(KeyCandidateList):
		return NodeSearchAgent
	case !state.Has(KeyFinalRecommendation):
		return NodeCombResults
	default:
		return graph.End
	}
}

// routes maps every key Route can return to its node.
var routes = map[string]string{
	NodeSpecsAgent:  NodeSpecsAgent,
	NodeSearchAgent: NodeSearchAgent,
	NodeCombResults: NodeCombResults,
	graph.End:       graph.End,
}

func routeKeys() []string {
	return []string{NodeSpecsAgent, NodeSearchAgent, NodeCombResults, graph.End}
}

// routerNode is the pass-through node the routing edge hangs off.
func routerNode(context.Context, graph.State) (graph.State, error) {
	return nil, nil
}
