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
	"fmt"
	"strings"
)

// EmptyRecommendation is the summary written when no candidate was found.
const EmptyRecommendation = "I couldn't find any suitable products based on the current state. " +
	"You may want to adjust the query or try again."

const specsSystemPrompt = `You extract shopping specifications from a user's request.
Return the product category, the maximum and minimum price (null when not stated),
brand preferences, intended use cases and key requirements.
Use empty lists for anything the user did not mention.`

const searchSystemPrompt = `You are a web search agent that finds products matching a set of specifications.
Use the search tool to find the 5 most relevant products currently on sale.
Only call the tool when you need more information.
Once you have a shortlist that satisfies the specifications, stop calling tools
and summarize the best options in plain language, including price, rating, source and URL.`

const productListInstruction = `Convert the products discussed above into the requested structure.
Use only products that appeared in the search results. Prices are numbers in %s.
Include a review digest when the results mention pros, cons or ratings.`

const reviewSystemPrompt = `You are a review analyst. Use the search tool to find recent reviews
for products matching the request, then stop calling tools and summarize
the pros, cons and overall sentiment of each product you found.`

const reviewListInstruction = `Convert the review findings above into the requested structure.
Use the product name as product_id. overall_sentiment must be positive, neutral or negative.`

const synthesisSystemPrompt = `You are an expert product recommendation assistant.
You are given the user's specifications and a shortlist of candidate products
with price, rating, snippet and review summaries.
Compare the products strictly against the specifications. Rank fit to use cases and
key requirements first, then price, then rating. Select the top 1 to 3 products,
explain why each matches, mention trade-offs, and end with one clear final choice.
Write the summary field in concise markdown. Quote prices in %s.`

func formatSpecs(s ProductSpecs) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", s.Category)
	fmt.Fprintf(&b, "Max price: %s\n", formatBound(s.MaxPrice))
	fmt.Fprintf(&b, "Min price: %s\n", formatBound(s.MinPrice))
	fmt.Fprintf(&b, "Brand preferences: %s\n", joinOrNA(s.BrandPreferences))
	fmt.Fprintf(&b, "Use cases: %s\n", joinOrNA(s.UseCases))
	fmt.Fprintf(&b, "Key requirements: %s", joinOrNA(s.KeyRequirements))
	return b.String()
}

func formatProducts(products []Product, reviews []ReviewSummary) string {
	byID := make(map[string]ReviewSummary, len(reviews))
	for _, r := range reviews {
		byID[r.ProductID] = r
	}
	var b strings.Builder
	for i, p := range products {
		r, ok := byID[p.ID]
		if !ok {
			r, ok = byID[p.Name]
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Name)
		fmt.Fprintf(&b, "   - id: %s\n", p.ID)
		fmt.Fprintf(&b, "   - price: %g %s\n", p.Price, p.Currency)
		if p.Rating != nil {
			if p.RatingCount != nil {
				fmt.Fprintf(&b, "   - rating: %g (%d reviews)\n", *p.Rating, *p.RatingCount)
			} else {
				fmt.Fprintf(&b, "   - rating: %g\n", *p.Rating)
			}
		}
		fmt.Fprintf(&b, "   - source: %s\n", orUnknown(p.Source))
		fmt.Fprintf(&b, "   - availability: %s\n", orUnknown(p.Availability))
		fmt.Fprintf(&b, "   - url: %s\n", p.URL)
		if p.Snippet != "" {
			fmt.Fprintf(&b, "   - snippet: %s\n", p.Snippet)
		}
		if ok {
			fmt.Fprintf(&b, "   - review pros: %s\n", joinOrNA(r.Pros))
			fmt.Fprintf(&b, "   - review cons: %s\n", joinOrNA(r.Cons))
			fmt.Fprintf(&b, "   - overall sentiment: %s\n", r.OverallSentiment)
		}
	}
	return b.String()
}

func formatBound(v *float64) string {
	if v == nil {
		return "not specified"
	}
	return fmt.Sprintf("%g", *v)
}

func joinOrNA(items []string) string {
	if len(items) == 0 {
		return "N/A"
	}
	return strings.Join(items, ", ")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
