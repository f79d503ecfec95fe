//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package research wires the product research graph: a router gate that
// dispatches specification extraction, candidate search and recommendation
// synthesis until every result field is present.
package research

import (
	"reflect"

	"trpc.group/trpc-go/vector-agent-go/graph"
	"trpc.group/trpc-go/vector-agent-go/internal/jsonschema"
	"trpc.group/trpc-go/vector-agent-go/model"
)

// State keys.
const (
	KeyRawQuery            = "raw_query"
	KeyCurrency            = "currency"
	KeyExtractedSpec       = "extracted_spec"
	KeyCandidateList       = "candidate_list"
	KeyReviewSummaries     = "review_summaries"
	KeyFinalRecommendation = "final_recommendation"
	KeyMessageLog          = "message_log"
	KeyPhaseMarker         = "phase_marker"
)

// Phase is the informational progress marker written by the workers.
// Routing never reads it.
type Phase string

// Phases.
const (
	PhaseSpecsGeneration     Phase = "specs_generation"
	PhaseProductSearch       Phase = "product_search"
	PhaseReviewAnalysis      Phase = "review_analysis"
	PhaseFinalRecommendation Phase = "final_recommendation"
)

// NewSchema returns the state schema of a research run. Record fields are
// replaced whole and checked against their JSON schema; message_log only
// grows.
func NewSchema() *graph.StateSchema {
	return graph.NewStateSchema().
		AddField(KeyRawQuery, graph.StateField{
			Type:      reflect.TypeOf(""),
			Required:  true,
			Immutable: true,
		}).
		AddField(KeyCurrency, graph.StateField{
			Type:      reflect.TypeOf(""),
			Immutable: true,
		}).
		AddField(KeyExtractedSpec, graph.StateField{
			Type:      reflect.TypeOf(ProductSpecs{}),
			Validator: jsonschema.MustCompile(jsonschema.For[ProductSpecs]()),
		}).
		AddField(KeyCandidateList, graph.StateField{
			Type:      reflect.TypeOf([]Product{}),
			Validator: jsonschema.MustCompile(jsonschema.For[[]Product]()),
		}).
		AddField(KeyReviewSummaries, graph.StateField{
			Type:      reflect.TypeOf([]ReviewSummary{}),
			Validator: jsonschema.MustCompile(jsonschema.For[[]ReviewSummary]()),
		}).
		AddField(KeyFinalRecommendation, graph.StateField{
			Type:      reflect.TypeOf(Recommendation{}),
			Validator: jsonschema.MustCompile(jsonschema.For[Recommendation]()),
		}).
		AddField(KeyMessageLog, graph.StateField{
			Type:    reflect.TypeOf([]model.Message{}),
			Reducer: graph.AppendReducer,
			Default: func() any { return []model.Message{} },
		}).
		AddField(KeyPhaseMarker, graph.StateField{
			Type: reflect.TypeOf(Phase("")),
		})
}
