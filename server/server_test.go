//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/vector-agent-go/graph"
	"trpc.group/trpc-go/vector-agent-go/research"
)

type fakeResearcher struct {
	mu       sync.Mutex
	query    string
	currency string
	deadline bool
	res      *research.Result
	err      error
}

func (f *fakeResearcher) Research(ctx context.Context, query, cur string) (*research.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query, f.currency = query, cur
	_, f.deadline = ctx.Deadline()
	return f.res, f.err
}

func okResult() *research.Result {
	return &research.Result{
		Query:    "laptop",
		Currency: "USD",
		Products: []research.Product{{ID: "p1", Name: "XPS 13", Price: 999, Currency: "USD"}},
		Recommendation: &research.Recommendation{
			TopPicks: []string{"p1"},
			Summary:  "**XPS 13** is the pick",
		},
	}
}

func newTestServer(t *testing.T, f *fakeResearcher, opts ...Option) *httptest.Server {
	t.Helper()
	s, err := New(f, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, contentTypeJSON, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestNewRequiresResearcher(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeResearcher{})
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResearchRoutes(t *testing.T) {
	for _, path := range []string{"/research", "/USER"} {
		t.Run(path, func(t *testing.T) {
			f := &fakeResearcher{res: okResult()}
			ts := newTestServer(t, f)

			resp, out := post(t, ts.URL+path, `{"user":"  laptop under $1000 ","currency":"USD"}`)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.NotEmpty(t, out["request_id"])
			assert.Equal(t, out["request_id"], resp.Header.Get(headerRequestID))
			assert.Len(t, out["product_list"], 1)
			assert.NotNil(t, out["final_recommendation"])
			assert.NotContains(t, out, "failure")
			assert.NotContains(t, out, "summary_html")
			assert.Equal(t, "laptop under $1000", f.query)
			assert.Equal(t, "USD", f.currency)
		})
	}
}

func TestResearchKeepsRequestID(t *testing.T) {
	ts := newTestServer(t, &fakeResearcher{res: okResult()})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/research", strings.NewReader(`{"user":"q"}`))
	require.NoError(t, err)
	req.Header.Set(headerRequestID, "abc")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc", resp.Header.Get(headerRequestID))
}

func TestResearchHTMLSummary(t *testing.T) {
	ts := newTestServer(t, &fakeResearcher{res: okResult()})
	resp, out := post(t, ts.URL+"/research?format=html", `{"user":"laptop"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out["summary_html"], "<strong>XPS 13</strong>")
}

func TestResearchEmptyProductList(t *testing.T) {
	ts := newTestServer(t, &fakeResearcher{res: &research.Result{}})
	_, out := post(t, ts.URL+"/research", `{"user":"laptop"}`)
	assert.Equal(t, []any{}, out["product_list"])
}

func TestResearchBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"user":`},
		{"missing user", `{"currency":"USD"}`},
		{"blank user", `{"user":"   "}`},
		{"bad currency", `{"user":"q","currency":"DOLLARS"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeResearcher{res: okResult()}
			ts := newTestServer(t, f)
			resp, out := post(t, ts.URL+"/research", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
			assert.Empty(t, f.query)
		})
	}
}

func TestResearchInputErrorFromService(t *testing.T) {
	ts := newTestServer(t, &fakeResearcher{err: research.ErrInvalidCurrency})
	resp, _ := post(t, ts.URL+"/research", `{"user":"q","currency":"XYZ"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ts = newTestServer(t, &fakeResearcher{err: errors.New("boom")})
	resp, _ = post(t, ts.URL+"/research", `{"user":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestResearchFailureMarker(t *testing.T) {
	tests := []struct {
		kind   graph.FailureKind
		status int
	}{
		{graph.FailureCompletion, http.StatusBadGateway},
		{graph.FailureTool, http.StatusBadGateway},
		{graph.FailureTimeout, http.StatusGatewayTimeout},
		{graph.FailureCycleLimit, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			res := &research.Result{
				Products: []research.Product{{ID: "p1", Name: "A"}},
				Failure:  &graph.Failure{Node: "review_agent", Kind: tt.kind, Message: "x"},
			}
			ts := newTestServer(t, &fakeResearcher{res: res, err: errors.New("x")})
			resp, out := post(t, ts.URL+"/research", `{"user":"q"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			require.Contains(t, out, "failure")
			assert.Equal(t, string(tt.kind), out["failure"].(map[string]any)["kind"])
			assert.Len(t, out["product_list"], 1)
		})
	}
}

func TestResearchTimeout(t *testing.T) {
	f := &fakeResearcher{res: okResult()}
	ts := newTestServer(t, f, WithRequestTimeout(time.Minute))
	post(t, ts.URL+"/research", `{"user":"q"}`)
	assert.True(t, f.deadline)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &fakeResearcher{}, WithAllowedOrigins("http://localhost:3000"))
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/research", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
