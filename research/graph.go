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
	"fmt"

	"trpc.group/trpc-go/vector-agent-go/graph"
)

// Graph variants.
const (
	VariantSequential = "sequential"
	VariantParallel   = "parallel"
)

// BuildGraph compiles the router gated graph:
//
//	start -> router -> {specs_agent | search_agent | comb_results | end}
//
// Every worker returns to the router, which dispatches the first step
// whose output is still missing.
func BuildGraph(w *Workers) (*graph.Graph, error) {
	return graph.NewStateGraph(NewSchema()).
		AddNode(NodeRouter, routerNode,
			graph.WithDescription("progress gate"),
			graph.WithOwnedFields()).
		AddNode(NodeSpecsAgent, withPhase(PhaseSpecsGeneration, w.ExtractSpecs),
			graph.WithDescription("extracts shopping specifications from the query"),
			graph.WithOwnedFields(KeyExtractedSpec, KeyPhaseMarker)).
		AddNode(NodeSearchAgent, withPhase(PhaseProductSearch, w.SearchCandidates),
			graph.WithDescription("searches the web for candidate products"),
			graph.WithOwnedFields(KeyCandidateList, KeyReviewSummaries, KeyMessageLog, KeyPhaseMarker)).
		AddNode(NodeCombResults, withPhase(PhaseFinalRecommendation, w.Synthesize),
			graph.WithDescription("combines specs and candidates into a recommendation"),
			graph.WithOwnedFields(KeyFinalRecommendation, KeyPhaseMarker)).
		AddEdge(graph.Start, NodeRouter).
		AddConditionalEdges(NodeRouter, Route, routes, graph.WithRouteKeys(routeKeys()...)).
		AddEdge(NodeSpecsAgent, NodeRouter).
		AddEdge(NodeSearchAgent, NodeRouter).
		AddEdge(NodeCombResults, NodeRouter).
		Compile()
}

// BuildParallelGraph compiles the fan-out variant: extraction, search and
// review analysis run concurrently and comb_results runs once all three
// have written their fields.
//
//	start -> fan_out{specs_agent, search_agent, review_agent} -> comb_results -> end
func BuildParallelGraph(w *Workers, opts ...graph.FanOutOption) (*graph.Graph, error) {
	fan, owned, err := graph.FanOut([]graph.Branch{
		{ID: NodeSpecsAgent, Function: w.ExtractSpecs, Owns: []string{KeyExtractedSpec}},
		{ID: NodeSearchAgent, Function: w.searchFromQuery, Owns: []string{KeyCandidateList, KeyMessageLog}},
		{ID: NodeReviewAgent, Function: w.AnalyzeReviews, Owns: []string{KeyReviewSummaries}},
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("build fan-out: %w", err)
	}
	return graph.NewStateGraph(NewSchema()).
		AddNode(NodeFanOut, fan,
			graph.WithDescription("runs the three workers concurrently"),
			graph.WithOwnedFields(owned...)).
		AddNode(NodeCombResults, withPhase(PhaseFinalRecommendation, w.synthesizeJoined),
			graph.WithDescription("combines every branch into a recommendation"),
			graph.WithOwnedFields(KeyFinalRecommendation, KeyPhaseMarker)).
		AddEdge(graph.Start, NodeFanOut).
		AddEdge(NodeFanOut, NodeCombResults).
		SetFinishPoint(NodeCombResults).
		Compile()
}

// synthesizeJoined is the join step: it refuses to run unless every
// branch field is present.
func (w *Workers) synthesizeJoined(ctx context.Context, state graph.State) (graph.State, error) {
	if err := graph.RequireFields(state, NodeCombResults,
		KeyExtractedSpec, KeyCandidateList, KeyReviewSummaries); err != nil {
		return nil, err
	}
	return w.Synthesize(ctx, state)
}

// Build compiles the graph of the given variant.
func Build(variant string, w *Workers) (*graph.Graph, error) {
	switch variant {
	case "", VariantSequential:
		return BuildGraph(w)
	case VariantParallel:
		return BuildParallelGraph(w)
	default:
		return nil, fmt.Errorf("unknown graph variant %q", variant)
	}
}
