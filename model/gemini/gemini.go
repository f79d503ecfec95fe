//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini implements the structured completion and tool calling
// capabilities with the Google GenAI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"trpc.group/trpc-go/vector-agent-go/model"
	"trpc.group/trpc-go/vector-agent-go/tool"
)

// Models is the subset of the GenAI models service used here.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Model talks to a Gemini model.
type Model struct {
	models      Models
	name        string
	temperature float32
}

var (
	_ model.StructuredCompleter = (*Model)(nil)
	_ model.ToolCaller          = (*Model)(nil)
)

// Option configures a Model.
type Option func(*options)

type options struct {
	clientConfig *genai.ClientConfig
	temperature  float32
	models       Models
}

// WithAPIKey sets the Gemini API key. When unset the SDK reads GEMINI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) { o.clientConfig.APIKey = key }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.clientConfig.HTTPOptions.BaseURL = url }
}

// WithTemperature sets the sampling temperature. Defaults to 0.1.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = float32(t) }
}

// WithModels injects the models service, bypassing client construction.
func WithModels(m Models) Option {
	return func(o *options) { o.models = m }
}

// New creates a Gemini backed Model.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	o := options{
		clientConfig: &genai.ClientConfig{Backend: genai.BackendGeminiAPI},
		temperature:  0.1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	models := o.models
	if models == nil {
		client, err := genai.NewClient(ctx, o.clientConfig)
		if err != nil {
			return nil, fmt.Errorf("create genai client: %w", err)
		}
		models = client.Models
	}
	return &Model{models: models, name: name, temperature: o.temperature}, nil
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

// CompleteStructured asks for a JSON document conforming to schema.
func (m *Model) CompleteStructured(
	ctx context.Context,
	messages []model.Message,
	schema *model.OutputSchema,
) ([]byte, error) {
	if schema == nil {
		return nil, m.fail(fmt.Errorf("output schema is required"))
	}
	contents, config := m.convertMessages(messages)
	config.ResponseMIMEType = "application/json"
	config.ResponseJsonSchema = schema.Schema

	rsp, err := m.models.GenerateContent(ctx, m.name, contents, config)
	if err != nil {
		return nil, m.fail(err)
	}
	text := strings.TrimSpace(rsp.Text())
	if text == "" {
		return nil, m.fail(model.ErrEmptyCompletion)
	}
	return []byte(text), nil
}

// Decide returns the next assistant message given the loop so far.
func (m *Model) Decide(
	ctx context.Context,
	messages []model.Message,
	tools []*tool.Declaration,
) (model.Message, error) {
	contents, config := m.convertMessages(messages)
	if len(tools) > 0 {
		config.Tools = m.convertTools(tools)
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}
	rsp, err := m.models.GenerateContent(ctx, m.name, contents, config)
	if err != nil {
		return model.Message{}, m.fail(err)
	}
	if len(rsp.Candidates) == 0 || rsp.Candidates[0].Content == nil {
		return model.Message{}, m.fail(model.ErrEmptyCompletion)
	}
	var text strings.Builder
	out := model.Message{Role: model.RoleAssistant}
	for _, part := range rsp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
		if part.FunctionCall == nil {
			continue
		}
		args, err := json.Marshal(part.FunctionCall.Args)
		if err != nil {
			return model.Message{}, m.fail(fmt.Errorf("encode arguments of %s: %w", part.FunctionCall.Name, err))
		}
		id := part.FunctionCall.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			Type: "function",
			ID:   id,
			Function: model.FunctionDefinitionParam{
				Name:      part.FunctionCall.Name,
				Arguments: args,
			},
		})
	}
	out.Content = text.String()
	return out, nil
}

func (m *Model) fail(err error) error {
	return &model.CompletionError{Model: m.name, Cause: err}
}

// convertMessages splits system messages into the system instruction and
// maps the rest onto user and model turns.
func (m *Model) convertMessages(messages []model.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(m.temperature),
	}
	var (
		system   []string
		contents []*genai.Content
	)
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, msg.Content)
		case model.RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Function.Arguments, &args)
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Function.Name,
					Args: args,
				}})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: string(genai.RoleModel), Parts: parts})
			}
		case model.RoleTool:
			contents = append(contents, &genai.Content{
				Role: string(genai.RoleUser),
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolID,
					Name:     msg.ToolName,
					Response: map[string]any{"output": msg.Content},
				}}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  string(genai.RoleUser),
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		}
	}
	return contents, config
}

func (m *Model) convertTools(tools []*tool.Declaration) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, decl := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 decl.Name,
			Description:          decl.Description,
			ParametersJsonSchema: map[string]any(decl.InputSchema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
