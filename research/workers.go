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

	"trpc.group/trpc-go/vector-agent-go/graph"
	"trpc.group/trpc-go/vector-agent-go/log"
	"trpc.group/trpc-go/vector-agent-go/model"
	"trpc.group/trpc-go/vector-agent-go/tool"
)

const defaultCurrency = "USD"

var (
	specsSchema          = model.NewOutputSchema[ProductSpecs]("product_specs", "Shopping specifications extracted from the request")
	productListSchema    = model.NewOutputSchema[ProductList]("product_list", "Candidate products found by web search")
	reviewListSchema     = model.NewOutputSchema[ReviewList]("review_list", "Review digests of candidate products")
	recommendationSchema = model.NewOutputSchema[Recommendation]("recommendation", "Final product recommendation")
)

// Workers holds the external capabilities of the research graph and
// produces its node functions.
type Workers struct {
	completer  model.StructuredCompleter
	modelName  string
	searchLoop *graph.ToolLoop
	reviewLoop *graph.ToolLoop
}

// WorkerOption configures Workers.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	modelName   string
	loopOptions []graph.ToolLoopOption
}

// WithModelName names the completion model in errors.
func WithModelName(name string) WorkerOption {
	return func(o *workerOptions) { o.modelName = name }
}

// WithToolLoopOptions configures the search and review loops.
func WithToolLoopOptions(opts ...graph.ToolLoopOption) WorkerOption {
	return func(o *workerOptions) { o.loopOptions = append(o.loopOptions, opts...) }
}

// NewWorkers builds the workers. completer serves the structured steps;
// decider drives the search loops over tools.
func NewWorkers(
	completer model.StructuredCompleter,
	decider model.ToolCaller,
	tools []tool.CallableTool,
	opts ...WorkerOption,
) (*Workers, error) {
	if completer == nil {
		return nil, errors.New("research workers need a structured completer")
	}
	o := workerOptions{modelName: "completion"}
	for _, opt := range opts {
		opt(&o)
	}
	w := &Workers{completer: completer, modelName: o.modelName}
	var err error
	w.searchLoop, err = graph.NewToolLoop(decider, tools, w.finalizeProducts, o.loopOptions...)
	if err != nil {
		return nil, fmt.Errorf("build search loop: %w", err)
	}
	w.reviewLoop, err = graph.NewToolLoop(decider, tools, w.finalizeReviews, o.loopOptions...)
	if err != nil {
		return nil, fmt.Errorf("build review loop: %w", err)
	}
	return w, nil
}

// ExtractSpecs turns raw_query into extracted_spec with one structured
// completion.
func (w *Workers) ExtractSpecs(ctx context.Context, state graph.State) (graph.State, error) {
	if err := graph.RequireFields(state, NodeSpecsAgent, KeyRawQuery); err != nil {
		return nil, err
	}
	query, _ := graph.GetStateValue[string](state, KeyRawQuery)
	log.DebugfContext(ctx, "extracting specs from %q", query)
	specs, err := model.CompleteInto[ProductSpecs](ctx, w.completer, w.modelName, []model.Message{
		model.NewSystemMessage(specsSystemPrompt),
		model.NewUserMessage(query),
	}, specsSchema)
	if err != nil {
		return nil, err
	}
	return graph.State{KeyExtractedSpec: specs.normalize()}, nil
}

// SearchCandidates runs the search loop for the extracted spec and writes
// candidate_list, the loop's messages and, when the products carry review
// digests, review_summaries.
func (w *Workers) SearchCandidates(ctx context.Context, state graph.State) (graph.State, error) {
	if err := graph.RequireFields(state, NodeSearchAgent, KeyExtractedSpec); err != nil {
		return nil, err
	}
	specs, _ := graph.GetStateValue[ProductSpecs](state, KeyExtractedSpec)
	update, err := w.search(ctx, state, formatSpecs(specs))
	if err != nil {
		return nil, err
	}
	products, _ := graph.GetStateValue[[]Product](update, KeyCandidateList)
	if reviews := embeddedReviews(products); len(reviews) > 0 {
		update[KeyReviewSummaries] = normalizeReviews(reviews)
	}
	return update, nil
}

// searchFromQuery is the search branch of the parallel graph. It cannot
// wait for the spec, so it searches from the spec when it happens to be
// present and from the raw query otherwise.
func (w *Workers) searchFromQuery(ctx context.Context, state graph.State) (graph.State, error) {
	if err := graph.RequireFields(state, NodeSearchAgent, KeyRawQuery); err != nil {
		return nil, err
	}
	request, _ := graph.GetStateValue[string](state, KeyRawQuery)
	if specs, ok := graph.GetStateValue[ProductSpecs](state, KeyExtractedSpec); ok {
		request = formatSpecs(specs)
	}
	return w.search(ctx, state, request)
}

func (w *Workers) search(ctx context.Context, state graph.State, request string) (graph.State, error) {
	cur := currencyOf(state)
	res, err := w.searchLoop.Run(withCurrency(ctx, cur), []model.Message{
		model.NewSystemMessage(searchSystemPrompt),
		model.NewUserMessage(request + "\nCurrency: " + cur),
	})
	if err != nil {
		return nil, err
	}
	list, _ := res.Output.(ProductList)
	products := normalizeProducts(list.Products)
	log.DebugfContext(ctx, "search found %d candidates in %d rounds", len(products), res.Rounds)
	return graph.State{
		KeyCandidateList: products,
		KeyMessageLog:    res.Messages,
	}, nil
}

// AnalyzeReviews is the review branch of the parallel graph.
func (w *Workers) AnalyzeReviews(ctx context.Context, state graph.State) (graph.State, error) {
	if err := graph.RequireFields(state, NodeReviewAgent, KeyRawQuery); err != nil {
		return nil, err
	}
	query, _ := graph.GetStateValue[string](state, KeyRawQuery)
	res, err := w.reviewLoop.Run(ctx, []model.Message{
		model.NewSystemMessage(reviewSystemPrompt),
		model.NewUserMessage(query),
	})
	if err != nil {
		return nil, err
	}
	list, _ := res.Output.(ReviewList)
	return graph.State{KeyReviewSummaries: normalizeReviews(list.Reviews)}, nil
}

// Synthesize writes final_recommendation. An empty candidate list yields
// the fallback recommendation without consulting the model.
func (w *Workers) Synthesize(ctx context.Context, state graph.State) (graph.State, error) {
	if err := graph.RequireFields(state, NodeCombResults, KeyExtractedSpec, KeyCandidateList); err != nil {
		return nil, err
	}
	specs, _ := graph.GetStateValue[ProductSpecs](state, KeyExtractedSpec)
	products, _ := graph.GetStateValue[[]Product](state, KeyCandidateList)
	if len(products) == 0 {
		log.InfofContext(ctx, "no candidates, writing fallback recommendation")
		return graph.State{KeyFinalRecommendation: fallbackRecommendation()}, nil
	}
	reviews, _ := graph.GetStateValue[[]ReviewSummary](state, KeyReviewSummaries)
	cur := currencyOf(state)
	rec, err := model.CompleteInto[Recommendation](ctx, w.completer, w.modelName, []model.Message{
		model.NewSystemMessage(fmt.Sprintf(synthesisSystemPrompt, cur)),
		model.NewUserMessage("Here are the user specifications:\n" + formatSpecs(specs) +
			"\n\nHere is the product shortlist:\n" + formatProducts(products, reviews) +
			"\nPlease provide the final recommendation now."),
	}, recommendationSchema)
	if err != nil {
		return nil, err
	}
	return graph.State{KeyFinalRecommendation: rec.normalize()}, nil
}

func (w *Workers) finalizeProducts(ctx context.Context, msgs []model.Message) (any, error) {
	instruction := fmt.Sprintf(productListInstruction, currencyFrom(ctx))
	return model.CompleteInto[ProductList](ctx, w.completer, w.modelName,
		append(msgs[:len(msgs):len(msgs)], model.NewUserMessage(instruction)), productListSchema)
}

func (w *Workers) finalizeReviews(ctx context.Context, msgs []model.Message) (any, error) {
	return model.CompleteInto[ReviewList](ctx, w.completer, w.modelName,
		append(msgs[:len(msgs):len(msgs)], model.NewUserMessage(reviewListInstruction)), reviewListSchema)
}

func fallbackRecommendation() Recommendation {
	return Recommendation{
		TopPicks:        []string{},
		Recommendations: []RecommendedItem{},
		Summary:         EmptyRecommendation,
	}
}

// withPhase stamps the phase marker on a successful update.
func withPhase(p Phase, fn graph.NodeFunc) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.State, error) {
		update, err := fn(ctx, state)
		if err != nil {
			return nil, err
		}
		if update == nil {
			update = graph.State{}
		}
		update[KeyPhaseMarker] = p
		return update, nil
	}
}

func currencyOf(state graph.State) string {
	if cur, ok := graph.GetStateValue[string](state, KeyCurrency); ok && cur != "" {
		return cur
	}
	return defaultCurrency
}

type currencyKey struct{}

func withCurrency(ctx context.Context, cur string) context.Context {
	return context.WithValue(ctx, currencyKey{}, cur)
}

func currencyFrom(ctx context.Context) string {
	if cur, ok := ctx.Value(currencyKey{}).(string); ok && cur != "" {
		return cur
	}
	return defaultCurrency
}
