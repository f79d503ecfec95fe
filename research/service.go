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
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/currency"

	"trpc.group/trpc-go/vector-agent-go/graph"
	"trpc.group/trpc-go/vector-agent-go/log"
)

// ErrEmptyQuery is returned for a blank research query.
var ErrEmptyQuery = errors.New("research query is empty")

// ErrInvalidCurrency is returned for a code that is not ISO 4217.
var ErrInvalidCurrency = errors.New("invalid currency")

// Result is the outcome of a research run.
type Result struct {
	Query          string          `json:"query"`
	Currency       string          `json:"currency"`
	Specs          *ProductSpecs   `json:"extracted_spec,omitempty"`
	Products       []Product       `json:"product_list"`
	Reviews        []ReviewSummary `json:"review_summaries,omitempty"`
	Recommendation *Recommendation `json:"final_recommendation,omitempty"`
	Phase          Phase           `json:"phase,omitempty"`
	Failure        *graph.Failure  `json:"failure,omitempty"`
}

// Failed reports whether the run ended with a failure marker. A run that
// found nothing is not a failure.
func (r *Result) Failed() bool { return r.Failure != nil }

// Service runs research queries on a compiled graph. It is safe for
// concurrent use.
type Service struct {
	executor *graph.Executor
}

// NewService creates a service running g.
func NewService(g *graph.Graph, opts ...graph.ExecutorOption) (*Service, error) {
	exec, err := graph.NewExecutor(g, opts...)
	if err != nil {
		return nil, err
	}
	return &Service{executor: exec}, nil
}

// NormalizeCurrency validates an ISO 4217 code and returns it upper case.
// An empty code means USD.
func NormalizeCurrency(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return defaultCurrency, nil
	}
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidCurrency, code, err)
	}
	return unit.String(), nil
}

// Research runs the graph for query. On failure it still returns the
// partial result, with Failure set, together with the error.
func (s *Service) Research(ctx context.Context, query, cur string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	code, err := NormalizeCurrency(cur)
	if err != nil {
		return nil, err
	}
	final, err := s.executor.Invoke(ctx, graph.State{
		KeyRawQuery: query,
		KeyCurrency: code,
	})
	res := resultFromState(final)
	if err != nil {
		log.ErrorfContext(ctx, "research run for %q failed: %v", query, err)
		return res, err
	}
	return res, nil
}

func resultFromState(state graph.State) *Result {
	res := &Result{}
	res.Query, _ = graph.GetStateValue[string](state, KeyRawQuery)
	res.Currency, _ = graph.GetStateValue[string](state, KeyCurrency)
	if specs, ok := graph.GetStateValue[ProductSpecs](state, KeyExtractedSpec); ok {
		res.Specs = &specs
	}
	res.Products, _ = graph.GetStateValue[[]Product](state, KeyCandidateList)
	if res.Products == nil {
		res.Products = []Product{}
	}
	res.Reviews, _ = graph.GetStateValue[[]ReviewSummary](state, KeyReviewSummaries)
	if rec, ok := graph.GetStateValue[Recommendation](state, KeyFinalRecommendation); ok {
		res.Recommendation = &rec
	}
	res.Phase, _ = graph.GetStateValue[Phase](state, KeyPhaseMarker)
	res.Failure, _ = graph.FailureOf(state)
	return res
}
