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
	"strings"
	"time"

	"trpc.group/trpc-go/vector-agent-go/model"
	"trpc.group/trpc-go/vector-agent-go/tool"
)

var (
	// ErrCycleLimitExceeded matches every *CycleLimitError.
	ErrCycleLimitExceeded = errors.New("cycle limit exceeded")
	// ErrMaxRoundsExceeded matches every *MaxRoundsError.
	ErrMaxRoundsExceeded = errors.New("tool loop exceeded max rounds")
	// ErrToolNotFound is the cause of a tool.Error for an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")
)

// ValidationError reports a state update that violates the schema.
type ValidationError struct {
	Field  string
	Node   string
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid value for field %q", e.Field)
	if e.Node != "" {
		fmt.Fprintf(&b, " from node %q", e.Node)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// DuplicateNodeError is recorded when a node id is registered twice.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %q already exists", e.NodeID)
}

// GraphValidationError lists every structural problem found by Compile.
type GraphValidationError struct {
	Problems []string
}

func (e *GraphValidationError) Error() string {
	return "invalid graph: " + strings.Join(e.Problems, "; ")
}

// RoutingError reports that no next node could be resolved.
type RoutingError struct {
	From       string
	Key        string
	Candidates []string
	Reason     string
}

func (e *RoutingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("routing from %q failed: %s", e.From, e.Reason)
	}
	return fmt.Sprintf("routing from %q failed: key %q is not one of %v", e.From, e.Key, e.Candidates)
}

// CycleLimitError reports a run that executed its step budget without
// reaching End.
type CycleLimitError struct {
	Limit int
	Node  string
}

func (e *CycleLimitError) Error() string {
	return fmt.Sprintf("cycle limit of %d steps exceeded before node %q", e.Limit, e.Node)
}

// Is makes errors.Is(err, ErrCycleLimitExceeded) true.
func (e *CycleLimitError) Is(target error) bool { return target == ErrCycleLimitExceeded }

// MissingDependencyError reports a node invoked before a field it reads
// was populated.
type MissingDependencyError struct {
	Node  string
	Field string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("node %q requires field %q which is not populated", e.Node, e.Field)
}

// MaxRoundsError reports a tool loop that kept requesting tools after its
// round budget was spent.
type MaxRoundsError struct {
	Max int
}

func (e *MaxRoundsError) Error() string {
	return fmt.Sprintf("tool loop exceeded %d rounds", e.Max)
}

// Is makes errors.Is(err, ErrMaxRoundsExceeded) true.
func (e *MaxRoundsError) Is(target error) bool { return target == ErrMaxRoundsExceeded }

// NodeTimeoutError reports a node that did not return within its timeout.
type NodeTimeoutError struct {
	NodeID  string
	Timeout time.Duration
}

func (e *NodeTimeoutError) Error() string {
	return fmt.Sprintf("node %q timed out after %s", e.NodeID, e.Timeout)
}

func (e *NodeTimeoutError) Unwrap() error { return context.DeadlineExceeded }

// NodeError wraps the error returned by a node function.
type NodeError struct {
	NodeID string
	Cause  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.NodeID, e.Cause)
}

func (e *NodeError) Unwrap() error { return e.Cause }

// RequireFields returns a *MissingDependencyError for the first field in
// fields that state does not hold.
func RequireFields(state State, node string, fields ...string) error {
	for _, f := range fields {
		if !state.Has(f) {
			return &MissingDependencyError{Node: node, Field: f}
		}
	}
	return nil
}

// FailureKind classifies why a run failed.
type FailureKind string

// Failure kinds.
const (
	FailureValidation        FailureKind = "validation"
	FailureRouting           FailureKind = "routing"
	FailureCycleLimit        FailureKind = "cycle_limit"
	FailureMissingDependency FailureKind = "missing_dependency"
	FailureMaxRounds         FailureKind = "max_rounds"
	FailureTool              FailureKind = "tool"
	FailureCompletion        FailureKind = "completion"
	FailureTimeout           FailureKind = "timeout"
	FailureCanceled          FailureKind = "canceled"
	FailureNode              FailureKind = "node"
)

// Failure is the marker stored under StateKeyFailure in the terminal state
// of a failed run.
type Failure struct {
	Node    string      `json:"node,omitempty"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Step    int         `json:"step"`
}

// FailureOf returns the failure marker of a terminal state.
func FailureOf(state State) (*Failure, bool) {
	f, ok := state[StateKeyFailure].(*Failure)
	return f, ok && f != nil
}

// ClassifyError maps an error to its FailureKind.
func ClassifyError(err error) FailureKind {
	var (
		validation *ValidationError
		routing    *RoutingError
		missing    *MissingDependencyError
		toolErr    *tool.Error
		completion *model.CompletionError
	)
	switch {
	case errors.Is(err, ErrCycleLimitExceeded):
		return FailureCycleLimit
	case errors.As(err, &routing):
		return FailureRouting
	case errors.As(err, &validation):
		return FailureValidation
	case errors.As(err, &missing):
		return FailureMissingDependency
	case errors.Is(err, ErrMaxRoundsExceeded):
		return FailureMaxRounds
	case errors.As(err, &toolErr):
		return FailureTool
	case errors.As(err, &completion):
		return FailureCompletion
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureCanceled
	default:
		return FailureNode
	}
}
