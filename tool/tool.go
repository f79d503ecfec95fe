//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool defines the callable capabilities a decision model may
// request during a tool loop.
package tool

import (
	"context"
	"fmt"
)

// Schema is a JSON schema document describing tool arguments.
type Schema map[string]any

// Declaration describes a tool to a decision model.
type Declaration struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
}

// Tool is anything that can describe itself to a model.
type Tool interface {
	Declaration() *Declaration
}

// CallableTool is a Tool that can be invoked with JSON encoded arguments.
type CallableTool interface {
	Tool
	Call(ctx context.Context, jsonArgs []byte) (any, error)
}

// Error reports the failure of a tool invocation. It wraps the underlying
// cause so callers can inspect it with errors.Is and errors.As.
type Error struct {
	Tool   string
	CallID string
	Cause  error
}

func (e *Error) Error() string {
	if e.CallID == "" {
		return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Cause)
	}
	return fmt.Sprintf("tool %s (call %s) failed: %v", e.Tool, e.CallID, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }
