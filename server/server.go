//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the research service over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/yuin/goldmark"

	"trpc.group/trpc-go/vector-agent-go/graph"
	"trpc.group/trpc-go/vector-agent-go/log"
	"trpc.group/trpc-go/vector-agent-go/research"
)

const (
	headerContentType = "Content-Type"
	headerRequestID   = "X-Request-ID"
	contentTypeJSON   = "application/json"

	formatHTML = "html"

	maxBodyBytes = 1 << 20
)

// Researcher runs one research query.
type Researcher interface {
	Research(ctx context.Context, query, currency string) (*research.Result, error)
}

// Request is the body of a research call.
type Request struct {
	User     string `json:"user" validate:"required,max=2000"`
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
}

// Response is the body returned by a research call.
type Response struct {
	RequestID           string                   `json:"request_id"`
	ProductList         []research.Product       `json:"product_list"`
	FinalRecommendation *research.Recommendation `json:"final_recommendation"`
	SummaryHTML         string                   `json:"summary_html,omitempty"`
	Failure             *graph.Failure           `json:"failure,omitempty"`
}

type errorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

// Server serves research requests.
type Server struct {
	researcher Researcher
	router     *mux.Router
	handler    http.Handler
	timeout    time.Duration
	origins    []string
	md         goldmark.Markdown
	validate   *validator.Validate
}

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout bounds every research run. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithAllowedOrigins sets the CORS origins. Default is "*".
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// New creates a server backed by r.
func New(r Researcher, opts ...Option) (*Server, error) {
	if r == nil {
		return nil, errors.New("server: researcher is required")
	}
	s := &Server{
		researcher: r,
		router:     mux.NewRouter(),
		origins:    []string{"*"},
		md:         goldmark.New(),
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{headerRequestID},
	})
	s.registerRoutes()
	s.handler = c.Handler(s.router)
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/research", s.handleResearch).Methods(http.MethodPost)
	s.router.HandleFunc("/USER", s.handleResearch).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(headerRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(headerRequestID, requestID)

	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req.User = strings.TrimSpace(req.User)
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, fmt.Errorf("invalid request: %w", err))
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := s.researcher.Research(ctx, req.User, req.Currency)
	if res == nil {
		status := http.StatusInternalServerError
		if err != nil && isInputError(err) {
			status = http.StatusBadRequest
		}
		if err == nil {
			err = errors.New("no result")
		}
		writeError(w, status, requestID, err)
		return
	}
	log.Infof("request %s: %d products in %s", requestID, len(res.Products), time.Since(start))

	resp := Response{
		RequestID:           requestID,
		ProductList:         res.Products,
		FinalRecommendation: res.Recommendation,
		Failure:             res.Failure,
	}
	if resp.ProductList == nil {
		resp.ProductList = []research.Product{}
	}
	if r.URL.Query().Get("format") == formatHTML && res.Recommendation != nil {
		html, herr := s.renderMarkdown(res.Recommendation.Summary)
		if herr != nil {
			log.Warnf("request %s: render summary: %v", requestID, herr)
		} else {
			resp.SummaryHTML = html
		}
	}
	writeJSON(w, statusFor(res.Failure), resp)
}

func (s *Server) renderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func isInputError(err error) bool {
	return errors.Is(err, research.ErrEmptyQuery) || errors.Is(err, research.ErrInvalidCurrency)
}

// statusFor maps a failure marker to an HTTP status. Upstream model and
// search failures are reported as a bad gateway.
func statusFor(f *graph.Failure) int {
	if f == nil {
		return http.StatusOK
	}
	switch f.Kind {
	case graph.FailureCompletion, graph.FailureTool:
		return http.StatusBadGateway
	case graph.FailureTimeout:
		return http.StatusGatewayTimeout
	case graph.FailureCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, requestID string, err error) {
	writeJSON(w, status, errorResponse{RequestID: requestID, Error: err.Error()})
}
