//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(_ context.Context, _ State) (State, error) { return nil, nil }

func counterSchema() *StateSchema {
	return NewStateSchema().AddField("n", StateField{Type: reflect.TypeOf(0)})
}

func TestCompileValidGraph(t *testing.T) {
	g, err := NewStateGraph(counterSchema()).
		AddNode("a", noop).
		AddNode("b", noop).
		AddEdge(Start, "a").
		AddEdge("a", "b").
		SetFinishPoint("b").
		Compile()
	require.NoError(t, err)
	assert.Equal(t, "a", g.EntryPoint())
	assert.Equal(t, []string{"a", "b"}, g.NodeIDs())
}

func TestCompiledGraphIsDetachedFromBuilder(t *testing.T) {
	sg := NewStateGraph(counterSchema()).
		AddNode("a", noop, WithOwnedFields("n")).
		AddConditionalEdges("a", func(State) string { return "end" },
			map[string]string{"end": End})
	g, err := sg.Compile()
	require.NoError(t, err)

	sg.AddNode("b", noop).AddEdge("b", End)
	sg.graph.nodes["a"].Owns[0] = "changed"
	sg.graph.conditional["a"].pathMap["b"] = "b"

	assert.Equal(t, []string{"a"}, g.NodeIDs())
	n, _ := g.Node("a")
	assert.Equal(t, []string{"n"}, n.Owns)
	assert.Equal(t, []string{"end"}, g.Candidates("a"))
	_, hasEdge := g.edges["b"]
	assert.False(t, hasEdge)
}

func TestCompileDuplicateNode(t *testing.T) {
	_, err := NewStateGraph(counterSchema()).
		AddNode("a", noop).
		AddNode("a", noop).
		SetEntryPoint("a").
		SetFinishPoint("a").
		Compile()
	var dup *DuplicateNodeError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.NodeID)
}

func TestCompileRejectsBadNodeIDs(t *testing.T) {
	_, err := NewStateGraph(counterSchema()).AddNode("", noop).Compile()
	assert.Error(t, err)

	_, err = NewStateGraph(counterSchema()).AddNode("__x", noop).Compile()
	assert.Error(t, err)

	_, err = NewStateGraph(counterSchema()).AddNode("x", nil).Compile()
	assert.Error(t, err)
}

func TestCompileValidation(t *testing.T) {
	alwaysA := func(State) string { return "a" }
	tests := []struct {
		name  string
		build func() *StateGraph
	}{
		{
			name: "missing entry",
			build: func() *StateGraph {
				return NewStateGraph(counterSchema()).AddNode("a", noop).SetFinishPoint("a")
			},
		},
		{
			name: "unknown entry",
			build: func() *StateGraph {
				return NewStateGraph(counterSchema()).AddNode("a", noop).
					SetEntryPoint("zzz").SetFinishPoint("a")
			},
		},
		{
			name: "edge to unknown node",
			build: func() *StateGraph {
				return NewStateGraph(counterSchema()).AddNode("a", noop).
					SetEntryPoint("a").AddEdge("a", "missing")
			},
		},
		{
			name: "end unreachable",
			build: func() *StateGraph {
				return NewStateGraph(counterSchema()).
					AddNode("a", noop).AddNode("b", noop).
					SetEntryPoint("a").AddEdge("a", "b").AddEdge("b", "a")
			},
		},
		{
			name: "dead end node",
			build: func() *StateGraph {
				return NewStateGraph(counterSchema()).
					AddNode("a", noop).AddNode("b", noop).
					SetEntryPoint("a").
					AddConditionalEdges("a", alwaysA, map[string]string{"done": End, "b": "b"})
			},
		},
		{
			name: "route key without target",
			build: func() *StateGraph {
				return NewStateGraph(counterSchema()).AddNode("a", noop).SetEntryPoint("a").
					AddConditionalEdges("a", alwaysA, map[string]string{"done": End},
						WithRouteKeys("done", "again"))
			},
		},
		{
			name: "static and conditional from one node",
			build: func() *StateGraph {
				return NewStateGraph(counterSchema()).AddNode("a", noop).SetEntryPoint("a").
					AddEdge("a", End).
					AddConditionalEdges("a", alwaysA, map[string]string{"done": End})
			},
		},
		{
			name: "owned field not declared",
			build: func() *StateGraph {
				return NewStateGraph(counterSchema()).
					AddNode("a", noop, WithOwnedFields("missing")).
					SetEntryPoint("a").SetFinishPoint("a")
			},
		},
		{
			name: "nil schema",
			build: func() *StateGraph {
				return NewStateGraph(nil).AddNode("a", noop).SetEntryPoint("a").SetFinishPoint("a")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.build().Compile()
			assert.Nil(t, g)
			var ve *GraphValidationError
			require.ErrorAs(t, err, &ve)
			assert.NotEmpty(t, ve.Problems)
		})
	}
}

func TestMustCompilePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewStateGraph(counterSchema()).AddNode("a", noop).MustCompile()
	})
}

func TestCandidates(t *testing.T) {
	g := NewStateGraph(counterSchema()).
		AddNode("a", noop).
		SetEntryPoint("a").
		AddConditionalEdges("a", func(State) string { return "end" },
			map[string]string{"end": End, "again": "a"}).
		MustCompile()
	assert.Equal(t, []string{"again", "end"}, g.Candidates("a"))
	assert.Nil(t, g.Candidates("missing"))
}
