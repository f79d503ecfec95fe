//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package research

import "strconv"

// ProductSpecs is what the user asked for, extracted from the raw query.
type ProductSpecs struct {
	Category         string   `json:"category" jsonschema:"description=Product category such as laptop or headphones"`
	MaxPrice         *float64 `json:"max_price,omitempty" jsonschema:"description=Upper price bound or null"`
	MinPrice         *float64 `json:"min_price,omitempty" jsonschema:"description=Lower price bound or null"`
	BrandPreferences []string `json:"brand_preferences"`
	UseCases         []string `json:"use_cases"`
	KeyRequirements  []string `json:"key_requirements"`
}

func (s ProductSpecs) normalize() ProductSpecs {
	s.BrandPreferences = nonNil(s.BrandPreferences)
	s.UseCases = nonNil(s.UseCases)
	s.KeyRequirements = nonNil(s.KeyRequirements)
	return s
}

// Sentiment is the overall tone of a product's reviews.
type Sentiment string

// Sentiments.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Review is the review digest embedded in a product.
type Review struct {
	Pros             []string  `json:"pros"`
	Cons             []string  `json:"cons"`
	OverallSentiment Sentiment `json:"overall_sentiment" jsonschema:"enum=positive,enum=neutral,enum=negative"`
}

// Product is one candidate found by the search worker.
type Product struct {
	// ID is optional in model output; normalizeProducts fills p1, p2, ...
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	RatingCount  *int     `json:"rating_count,omitempty"`
	Source       string   `json:"source,omitempty"`
	Availability string   `json:"availability,omitempty"`
	URL          string   `json:"url"`
	Snippet      string   `json:"snippet,omitempty"`
	Review       *Review  `json:"review,omitempty"`
}

// ProductList is the structured output of the search loop.
type ProductList struct {
	Products []Product `json:"products"`
}

// ReviewSummary condenses the reviews of one candidate.
type ReviewSummary struct {
	ProductID        string    `json:"product_id"`
	Pros             []string  `json:"pros"`
	Cons             []string  `json:"cons"`
	OverallSentiment Sentiment `json:"overall_sentiment" jsonschema:"enum=positive,enum=neutral,enum=negative"`
}

// ReviewList is the structured output of the review loop.
type ReviewList struct {
	Reviews []ReviewSummary `json:"reviews"`
}

// RecommendedItem explains why one product made the shortlist.
type RecommendedItem struct {
	ProductName string   `json:"product_name"`
	Price       *float64 `json:"price,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	Source      string   `json:"source,omitempty"`
	URL         string   `json:"url,omitempty"`
	Why         string   `json:"why"`
	Tradeoffs   string   `json:"tradeoffs,omitempty"`
}

// FinalChoice is the single product the synthesis settles on.
type FinalChoice struct {
	ProductName string `json:"product_name"`
	Reason      string `json:"reason"`
}

// Recommendation is the final answer of a research run.
type Recommendation struct {
	TopPicks        []string          `json:"top_picks"`
	Recommendations []RecommendedItem `json:"recommendations"`
	FinalChoice     *FinalChoice      `json:"final_choice,omitempty"`
	// Summary is markdown.
	Summary string `json:"summary"`
}

func (r Recommendation) normalize() Recommendation {
	r.TopPicks = nonNil(r.TopPicks)
	if r.Recommendations == nil {
		r.Recommendations = []RecommendedItem{}
	}
	return r
}

// normalizeProducts fills missing ids and replaces nil slices so the list
// always matches its schema.
func normalizeProducts(products []Product) []Product {
	out := make([]Product, 0, len(products))
	for i, p := range products {
		if p.ID == "" {
			p.ID = productID(i)
		}
		if p.Review != nil {
			r := *p.Review
			r.Pros = nonNil(r.Pros)
			r.Cons = nonNil(r.Cons)
			p.Review = &r
		}
		out = append(out, p)
	}
	return out
}

func normalizeReviews(reviews []ReviewSummary) []ReviewSummary {
	out := make([]ReviewSummary, 0, len(reviews))
	for _, r := range reviews {
		r.Pros = nonNil(r.Pros)
		r.Cons = nonNil(r.Cons)
		out = append(out, r)
	}
	return out
}

// embeddedReviews collects the reviews carried by the products themselves.
func embeddedReviews(products []Product) []ReviewSummary {
	var out []ReviewSummary
	for _, p := range products {
		if p.Review == nil {
			continue
		}
		out = append(out, ReviewSummary{
			ProductID:        p.ID,
			Pros:             p.Review.Pros,
			Cons:             p.Review.Cons,
			OverallSentiment: p.Review.OverallSentiment,
		})
	}
	return out
}

func productID(i int) string {
	return "p" + strconv.Itoa(i+1)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
