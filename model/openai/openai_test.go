//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/vector-agent-go/model"
	"trpc.group/trpc-go/vector-agent-go/tool"
)

// fakeServer answers /chat/completions with reply and records the last request body.
func fakeServer(t *testing.T, status int, reply string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var last map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &last))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func completion(message string) string {
	return `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4.1",` +
		`"choices":[{"index":0,"finish_reason":"stop","message":` + message + `}],` +
		`"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`
}

func newTestModel(url string, opts ...Option) *Model {
	opts = append([]Option{WithAPIKey("test"), WithBaseURL(url + "/"), WithMaxRetries(0)}, opts...)
	return New("gpt-4.1", opts...)
}

func TestCompleteStructured(t *testing.T) {
	srv, last := fakeServer(t, http.StatusOK,
		completion(`{"role":"assistant","content":"{\"category\":\"laptop\"}"}`))
	m := newTestModel(srv.URL)

	schema := &model.OutputSchema{
		Name:   "product_specs",
		Schema: map[string]any{"type": "object", "properties": map[string]any{"category": map[string]any{"type": "string"}}},
	}
	out, err := m.CompleteStructured(context.Background(), []model.Message{
		model.NewSystemMessage("extract"),
		model.NewUserMessage("cheap laptop"),
	}, schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"laptop"}`, string(out))

	req := *last
	assert.Equal(t, "gpt-4.1", req["model"])
	assert.InDelta(t, 0.1, req["temperature"], 1e-9)
	format := req["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "product_specs", format["json_schema"].(map[string]any)["name"])
	assert.Len(t, req["messages"], 2)
}

func TestCompleteStructured_JSONObjectMode(t *testing.T) {
	srv, last := fakeServer(t, http.StatusOK,
		completion(`{"role":"assistant","content":"`+"```json\\n{\\\"ok\\\":true}\\n```"+`"}`))
	m := newTestModel(srv.URL, WithJSONObjectMode(true))

	out, err := m.CompleteStructured(context.Background(),
		[]model.Message{model.NewUserMessage("x")},
		&model.OutputSchema{Name: "flag", Schema: map[string]any{"type": "object"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))

	req := *last
	assert.Equal(t, "json_object", req["response_format"].(map[string]any)["type"])
	msgs := req["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestCompleteStructured_Errors(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, completion(`{"role":"assistant","content":""}`))
	m := newTestModel(srv.URL)
	_, err := m.CompleteStructured(context.Background(), nil, &model.OutputSchema{Name: "x"})
	var ce *model.CompletionError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, model.ErrEmptyCompletion)

	_, err = m.CompleteStructured(context.Background(), nil, nil)
	require.ErrorAs(t, err, &ce)

	bad, _ := fakeServer(t, http.StatusInternalServerError, `{"error":{"message":"overloaded","type":"server_error"}}`)
	_, err = newTestModel(bad.URL).CompleteStructured(context.Background(), nil, &model.OutputSchema{Name: "x"})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "gpt-4.1", ce.Model)
}

func TestDecide_ToolCalls(t *testing.T) {
	srv, last := fakeServer(t, http.StatusOK, completion(`{"role":"assistant","content":"",
		"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"exa_search","arguments":"{\"query\":\"dell xps\"}"}},
			{"id":"","type":"function","function":{"name":"exa_search","arguments":"{\"query\":\"thinkpad\"}"}}
		]}`))
	m := newTestModel(srv.URL)

	decls := []*tool.Declaration{{
		Name:        "exa_search",
		Description: "web search",
		InputSchema: tool.Schema{"type": "object"},
	}}
	history := []model.Message{
		model.NewUserMessage("find laptops"),
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{Type: "function", ID: "old",
			Function: model.FunctionDefinitionParam{Name: "exa_search", Arguments: []byte(`{}`)}}}},
		model.NewToolMessage("old", "exa_search", "[]"),
	}
	msg, err := m.Decide(context.Background(), history, decls)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.NotEmpty(t, msg.ToolCalls[1].ID)
	assert.JSONEq(t, `{"query":"thinkpad"}`, string(msg.ToolCalls[1].Function.Arguments))

	req := *last
	tools := req["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "exa_search", tools[0].(map[string]any)["function"].(map[string]any)["name"])
	msgs := req["messages"].([]any)
	assert.Equal(t, "old", msgs[2].(map[string]any)["tool_call_id"])
}

func TestDecide_FinalAnswer(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, completion(`{"role":"assistant","content":"Top picks: XPS 13"}`))
	msg, err := newTestModel(srv.URL).Decide(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.False(t, msg.HasToolCalls())
	assert.Equal(t, "Top picks: XPS 13", msg.Content)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(` {"a":1} `))
}

func TestInfo(t *testing.T) {
	assert.Equal(t, "llama-3", New("llama-3", WithBaseURL(GroqBaseURL), WithAPIKey("k")).Info().Name)
}
