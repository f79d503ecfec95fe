//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package websearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/vector-agent-go/tool"
)

const exaBody = `{
  "results": [
    {"title": "Dell XPS 13", "url": "https://example.com/xps", "text": "1.2 kg ultrabook", "publishedDate": "2025-01-02"},
    {"title": "Lenovo ThinkPad X1", "url": "https://example.com/x1", "text": "Carbon chassis"},
    {"title": "HP Spectre", "url": "https://example.com/hp", "text": "OLED"}
  ]
}`

func newFakeExa(t *testing.T, status int, body string, seen *exaRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(raw, seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestExaSearch(t *testing.T) {
	var seen exaRequest
	srv := newFakeExa(t, http.StatusOK, exaBody, &seen)
	defer srv.Close()

	c, err := newExa(newConfig(WithAPIKey("secret"), WithBaseURL(srv.URL), WithNumResults(2)))
	require.NoError(t, err)

	results, err := c.Search(context.Background(), "lightweight laptop")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Dell XPS 13", results[0].Title)
	assert.Equal(t, "https://example.com/x1", results[1].URL)
	assert.Equal(t, "2025-01-02", results[0].Published)

	assert.Equal(t, "lightweight laptop", seen.Query)
	assert.Equal(t, "auto", seen.Type)
	assert.Equal(t, 2, seen.NumResults)
	assert.Equal(t, "IN", seen.UserLocation)
	assert.True(t, seen.Contents.Text)
}

func TestExaSearchErrors(t *testing.T) {
	t.Run("status with message", func(t *testing.T) {
		srv := newFakeExa(t, http.StatusUnauthorized, `{"error":"invalid key"}`, nil)
		defer srv.Close()
		c, err := newExa(newConfig(WithAPIKey("secret"), WithBaseURL(srv.URL)))
		require.NoError(t, err)
		_, err = c.Search(context.Background(), "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid key")
	})

	t.Run("bad json", func(t *testing.T) {
		srv := newFakeExa(t, http.StatusOK, `{invalid`, nil)
		defer srv.Close()
		c, err := newExa(newConfig(WithAPIKey("secret"), WithBaseURL(srv.URL)))
		require.NoError(t, err)
		_, err = c.Search(context.Background(), "q")
		assert.Error(t, err)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := newExa(newConfig())
		assert.Error(t, err)
	})
}

func TestExaTextTruncated(t *testing.T) {
	body := `{"results":[{"title":"t","url":"u","text":"` + strings.Repeat("é", 50) + `"}]}`
	srv := newFakeExa(t, http.StatusOK, body, nil)
	defer srv.Close()
	c, err := newExa(newConfig(WithAPIKey("secret"), WithBaseURL(srv.URL), WithMaxTextChars(10)))
	require.NoError(t, err)

	results, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 10), results[0].Text)
}

func TestWithNumResultsClamps(t *testing.T) {
	assert.Equal(t, 1, newConfig(WithNumResults(0)).numResults)
	assert.Equal(t, MaxNumResults, newConfig(WithNumResults(50)).numResults)
	assert.Equal(t, 3, newConfig(WithNumResults(3)).numResults)
	assert.Equal(t, DefaultNumResults, newConfig().numResults)
}

const googleBody = `{
  "kind": "customsearch#search",
  "items": [
    {
      "title": "ThinkPad X1 Carbon",
      "link": "https://example.com/x1",
      "snippet": "snippet text",
      "pagemap": {"metatags": [{"og:description": "Lightweight business laptop"}]}
    },
    {"title": "XPS 13", "link": "https://example.com/xps", "snippet": "Dell ultrabook"}
  ]
}`

func TestGoogleSearch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(googleBody))
	}))
	defer srv.Close()

	c, err := newGoogle(context.Background(),
		newConfig(WithAPIKey("key"), WithEngineID("cx"), WithBaseURL(srv.URL)))
	require.NoError(t, err)

	results, err := c.Search(context.Background(), "thin laptop")
	require.NoError(t, err)
	assert.Equal(t, "thin laptop", query)
	require.Len(t, results, 2)
	assert.Equal(t, "Lightweight business laptop", results[0].Text)
	assert.Equal(t, "Dell ultrabook", results[1].Text)
}

func TestNewGoogleRequiresCredentials(t *testing.T) {
	_, err := newGoogle(context.Background(), newConfig())
	assert.Error(t, err)
	_, err = newGoogle(context.Background(), newConfig(WithAPIKey("key")))
	assert.Error(t, err)
}

type stubSearcher struct {
	results []Result
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, q string) ([]Result, error) {
	s.queries = append(s.queries, q)
	return s.results, nil
}

func TestNewTool(t *testing.T) {
	s := &stubSearcher{results: []Result{{Title: "a", URL: "u"}}}
	st := NewTool(s, "exa_search", "search")
	assert.Equal(t, "exa_search", st.Declaration().Name)
	assert.Equal(t, []string{"query"}, st.Declaration().InputSchema["required"])

	out, err := st.Call(context.Background(), []byte(`{"query":"  laptops  "}`))
	require.NoError(t, err)
	resp := out.(searchResponse)
	assert.Equal(t, "laptops", resp.Query)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, []string{"laptops"}, s.queries)

	_, err = st.Call(context.Background(), []byte(`{"query":" "}`))
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = st.Call(context.Background(), []byte(`{}`))
	assert.Error(t, err)
}

func TestNewToolNeverReturnsNilResults(t *testing.T) {
	st := NewTool(&stubSearcher{}, "exa_search", "search")
	out, err := st.Call(context.Background(), []byte(`{"query":"x"}`))
	require.NoError(t, err)
	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"x","results":[]}`, string(b))
}

func TestNewToolSet(t *testing.T) {
	ts, err := NewToolSet(context.Background(), BackendExa, WithAPIKey("secret"))
	require.NoError(t, err)
	assert.Equal(t, BackendExa, ts.Name())
	require.Len(t, ts.Tools(context.Background()), 1)
	assert.Contains(t, tool.Callables(context.Background(), ts), "exa_search")
	assert.NoError(t, ts.Close())

	ts, err = NewToolSet(context.Background(), BackendGoogle, WithAPIKey("k"), WithEngineID("cx"))
	require.NoError(t, err)
	assert.Equal(t, "google_search", ts.Tools(context.Background())[0].Declaration().Name)

	_, err = NewToolSet(context.Background(), "bing")
	assert.Error(t, err)
}
