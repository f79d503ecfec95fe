//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/vector-agent-go/model"
)

type specs struct {
	Category string   `json:"category"`
	MaxPrice *float64 `json:"max_price"`
	Brands   []string `json:"brand_preferences"`
}

type scriptedCompleter struct {
	out []byte
	err error
}

func (s *scriptedCompleter) CompleteStructured(context.Context, []model.Message, *model.OutputSchema) ([]byte, error) {
	return s.out, s.err
}

func TestCompleteInto(t *testing.T) {
	schema := model.NewOutputSchema[specs]("product_specs", "extracted specs")
	c := &scriptedCompleter{out: []byte(`{"category":"laptop","max_price":1200,"brand_preferences":["Dell"]}`)}

	got, err := model.CompleteInto[specs](context.Background(), c, "stub", nil, schema)
	require.NoError(t, err)
	assert.Equal(t, "laptop", got.Category)
	require.NotNil(t, got.MaxPrice)
	assert.Equal(t, 1200.0, *got.MaxPrice)
}

func TestCompleteInto_Failures(t *testing.T) {
	schema := model.NewOutputSchema[specs]("product_specs", "")
	cause := errors.New("rate limited")
	cases := map[string]*scriptedCompleter{
		"provider error": {err: cause},
		"empty":          {},
		"schema":         {out: []byte(`{"max_price":"cheap"}`)},
		"not json":       {out: []byte(`laptop`)},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := model.CompleteInto[specs](context.Background(), c, "stub", nil, schema)
			var ce *model.CompletionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "stub", ce.Model)
		})
	}

	_, err := model.CompleteInto[specs](context.Background(), &scriptedCompleter{err: cause}, "stub", nil, schema)
	assert.ErrorIs(t, err, cause)
	_, err = model.CompleteInto[specs](context.Background(), &scriptedCompleter{}, "stub", nil, schema)
	assert.ErrorIs(t, err, model.ErrEmptyCompletion)
}

func TestPendingToolCalls(t *testing.T) {
	call := func(id string) model.ToolCall {
		return model.ToolCall{Type: "function", ID: id, Function: model.FunctionDefinitionParam{Name: "exa_search"}}
	}
	log := []model.Message{
		model.NewSystemMessage("s"),
		model.NewUserMessage("u"),
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{call("a"), call("b")}},
		model.NewToolMessage("a", "exa_search", "{}"),
	}
	pending := model.PendingToolCalls(log)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].ID)

	log = append(log, model.NewToolMessage("b", "exa_search", "{}"))
	assert.Empty(t, model.PendingToolCalls(log))
	assert.True(t, log[2].HasToolCalls())
	assert.False(t, log[3].HasToolCalls())
	assert.Empty(t, model.PendingToolCalls(nil))
}

func TestRole(t *testing.T) {
	assert.True(t, model.RoleTool.IsValid())
	assert.False(t, model.Role("critic").IsValid())
	assert.Equal(t, "assistant", model.RoleAssistant.String())
}
