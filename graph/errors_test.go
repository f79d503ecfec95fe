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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"trpc.group/trpc-go/vector-agent-go/model"
	"trpc.group/trpc-go/vector-agent-go/tool"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{&CycleLimitError{Limit: 1}, FailureCycleLimit},
		{&RoutingError{From: "a", Key: "x"}, FailureRouting},
		{&ValidationError{Field: "f"}, FailureValidation},
		{&NodeError{NodeID: "n", Cause: &MissingDependencyError{Node: "n", Field: "f"}}, FailureMissingDependency},
		{fmt.Errorf("wrapped: %w", &MaxRoundsError{Max: 10}), FailureMaxRounds},
		{&tool.Error{Tool: "t", Cause: errors.New("x")}, FailureTool},
		{&model.CompletionError{Model: "m", Cause: errors.New("x")}, FailureCompletion},
		{&NodeTimeoutError{NodeID: "n"}, FailureTimeout},
		{context.Canceled, FailureCanceled},
		{errors.New("other"), FailureNode},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyError(tt.err), tt.err.Error())
	}
}

func TestRequireFields(t *testing.T) {
	state := State{"a": 1, "b": nil}
	assert.NoError(t, RequireFields(state, "n", "a"))

	err := RequireFields(state, "n", "a", "b")
	var md *MissingDependencyError
	assert.ErrorAs(t, err, &md)
	assert.Equal(t, "b", md.Field)
	assert.Equal(t, "n", md.Node)
}

func TestFailureOf(t *testing.T) {
	_, ok := FailureOf(State{})
	assert.False(t, ok)

	f, ok := FailureOf(State{StateKeyFailure: &Failure{Kind: FailureRouting}})
	assert.True(t, ok)
	assert.Equal(t, FailureRouting, f.Kind)
}
