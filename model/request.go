//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

// Role represents the role of a message author.
type Role string

// Role constants for message authors.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Message is one entry of a conversation log.
type Message struct {
	// Role is the role of the message author.
	Role Role `json:"role"`
	// Content is the text content.
	Content string `json:"content,omitempty"`
	// ToolID is the id of the call a tool message answers.
	ToolID string `json:"tool_id,omitempty"`
	// ToolName is the name of the tool a tool message answers.
	ToolName string `json:"tool_name,omitempty"`
	// ToolCalls are the invocation requests of an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// Type is always "function" for the providers supported here.
	Type     string                  `json:"type"`
	Function FunctionDefinitionParam `json:"function"`
	ID       string                  `json:"id"`
}

// FunctionDefinitionParam names the function to call and carries its
// JSON encoded arguments.
type FunctionDefinitionParam struct {
	Name      string `json:"name"`
	Arguments []byte `json:"arguments,omitempty"`
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage creates the result entry for the call identified by toolID.
func NewToolMessage(toolID, toolName, content string) Message {
	return Message{
		Role:     RoleTool,
		ToolID:   toolID,
		ToolName: toolName,
		Content:  content,
	}
}

// HasToolCalls reports whether m is an assistant message requesting tools.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// PendingToolCalls returns the tool calls of the most recent assistant
// message that have no matching tool result after it.
func PendingToolCalls(messages []Message) []ToolCall {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != RoleAssistant {
			continue
		}
		answered := make(map[string]bool)
		for _, m := range messages[i+1:] {
			if m.Role == RoleTool {
				answered[m.ToolID] = true
			}
		}
		var pending []ToolCall
		for _, call := range messages[i].ToolCalls {
			if !answered[call.ID] {
				pending = append(pending, call)
			}
		}
		return pending
	}
	return nil
}
