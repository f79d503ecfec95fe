//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package openai implements the structured completion and tool calling
// capabilities on top of the OpenAI chat completions API. Any compatible
// endpoint, such as Groq, works through WithBaseURL.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"trpc.group/trpc-go/vector-agent-go/log"
	"trpc.group/trpc-go/vector-agent-go/model"
	"trpc.group/trpc-go/vector-agent-go/tool"
)

// Model talks to a chat completions endpoint.
type Model struct {
	client         openai.Client
	name           string
	temperature    float64
	maxTokens      *int
	jsonObjectMode bool
}

var (
	_ model.StructuredCompleter = (*Model)(nil)
	_ model.ToolCaller          = (*Model)(nil)
)

// New creates a Model for the named chat model.
func New(name string, opts ...Option) *Model {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	var clientOpts []openaiopt.RequestOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, openaiopt.WithHTTPClient(o.httpClient))
	}
	if o.timeout > 0 {
		clientOpts = append(clientOpts, openaiopt.WithRequestTimeout(o.timeout))
	}
	clientOpts = append(clientOpts, openaiopt.WithMaxRetries(o.maxRetries))

	temperature := defaultTemperature
	if o.temperature != nil {
		temperature = *o.temperature
	}
	return &Model{
		client:         openai.NewClient(clientOpts...),
		name:           name,
		temperature:    temperature,
		maxTokens:      o.maxTokens,
		jsonObjectMode: o.jsonObjectMode,
	}
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
	chatRequest := m.buildRequest(messages)
	if m.jsonObjectMode {
		schemaJSON, err := json.Marshal(schema.Schema)
		if err != nil {
			return nil, m.fail(fmt.Errorf("marshal output schema: %w", err))
		}
		hint := fmt.Sprintf("Respond only with a JSON object named %s that conforms to this JSON schema:\n%s",
			schema.Name, schemaJSON)
		chatRequest.Messages = append(
			[]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(hint)},
			chatRequest.Messages...,
		)
		chatRequest.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	} else {
		chatRequest.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        schema.Name,
					Schema:      schema.Schema,
					Strict:      openai.Bool(schema.Strict),
					Description: openai.String(schema.Description),
				},
			},
		}
	}

	msg, err := m.complete(ctx, chatRequest)
	if err != nil {
		return nil, err
	}
	if msg.Refusal != "" {
		return nil, m.fail(fmt.Errorf("model refused: %s", msg.Refusal))
	}
	content := stripCodeFence(msg.Content)
	if content == "" {
		return nil, m.fail(model.ErrEmptyCompletion)
	}
	return []byte(content), nil
}

// Decide returns the next assistant message given the loop so far.
func (m *Model) Decide(
	ctx context.Context,
	messages []model.Message,
	tools []*tool.Declaration,
) (model.Message, error) {
	chatRequest := m.buildRequest(messages)
	chatRequest.Tools = m.convertTools(tools)

	msg, err := m.complete(ctx, chatRequest)
	if err != nil {
		return model.Message{}, err
	}
	out := model.NewAssistantMessage(msg.Content)
	for _, tc := range msg.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			Type: "function",
			ID:   id,
			Function: model.FunctionDefinitionParam{
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			},
		})
	}
	return out, nil
}

func (m *Model) buildRequest(messages []model.Message) openai.ChatCompletionNewParams {
	chatRequest := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(m.name),
		Messages:    m.convertMessages(messages),
		Temperature: openai.Float(m.temperature),
	}
	if m.maxTokens != nil {
		chatRequest.MaxCompletionTokens = openai.Int(int64(*m.maxTokens))
	}
	return chatRequest
}

func (m *Model) complete(
	ctx context.Context,
	chatRequest openai.ChatCompletionNewParams,
) (openai.ChatCompletionMessage, error) {
	chatCompletion, err := m.client.Chat.Completions.New(ctx, chatRequest)
	if err != nil {
		return openai.ChatCompletionMessage{}, m.fail(err)
	}
	if len(chatCompletion.Choices) == 0 {
		return openai.ChatCompletionMessage{}, m.fail(model.ErrEmptyCompletion)
	}
	log.Debugf("openai %s: %d prompt tokens, %d completion tokens",
		m.name, chatCompletion.Usage.PromptTokens, chatCompletion.Usage.CompletionTokens)
	return chatCompletion.Choices[0].Message, nil
}

func (m *Model) fail(err error) error {
	return &model.CompletionError{Model: m.name, Cause: err}
}

// convertMessages converts our Message format to OpenAI's format.
func (m *Model) convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			}
		case model.RoleAssistant:
			assistantMsg := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: m.convertToolCalls(msg.ToolCalls),
			}
			if msg.Content != "" {
				assistantMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			result[i] = openai.ChatCompletionMessageParamUnion{OfAssistant: assistantMsg}
		case model.RoleTool:
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
					ToolCallID: msg.ToolID,
				},
			}
		default:
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			}
		}
	}
	return result
}

func (m *Model) convertToolCalls(toolCalls []model.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	var result []openai.ChatCompletionMessageToolCallParam
	for _, toolCall := range toolCalls {
		result = append(result, openai.ChatCompletionMessageToolCallParam{
			ID: toolCall.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      toolCall.Function.Name,
				Arguments: string(toolCall.Function.Arguments),
			},
		})
	}
	return result
}

func (m *Model) convertTools(tools []*tool.Declaration) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam
	for _, declaration := range tools {
		result = append(result, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        declaration.Name,
				Description: openai.String(declaration.Description),
				Parameters:  shared.FunctionParameters(declaration.InputSchema),
			},
		})
	}
	return result
}

// stripCodeFence removes a ```json fence some compatible providers add
// around JSON answers.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
