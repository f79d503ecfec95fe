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
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/vector-agent-go/log"
	"trpc.group/trpc-go/vector-agent-go/model"
	"trpc.group/trpc-go/vector-agent-go/telemetry/metric"
	"trpc.group/trpc-go/vector-agent-go/telemetry/trace"
	"trpc.group/trpc-go/vector-agent-go/tool"
)

// DefaultMaxRounds bounds the number of tool execution passes of a loop.
const DefaultMaxRounds = 10

// Tool loop state keys and node ids.
const (
	StateKeyMessages = "messages"
	StateKeyRounds   = "rounds"
	StateKeyOutput   = "output"

	loopNodeDecide   = "decide"
	loopNodeTools    = "execute_tools"
	loopNodeFinalize = "finalize"

	routeTools    = "tools"
	routeFinalize = "finalize"
)

// FinalizeFunc turns the final conversation of a tool loop into its
// output. It is called once the decision model stops requesting tools.
type FinalizeFunc func(ctx context.Context, messages []model.Message) (any, error)

// ToolLoop repeatedly asks a decision model what to do, executes every
// requested tool call in one batch and feeds the results back, until the
// model answers without tool calls. It is a compiled three node graph:
// decide, execute_tools and finalize.
type ToolLoop struct {
	decider          model.ToolCaller
	tools            map[string]tool.CallableTool
	declarations     []*tool.Declaration
	finalize         FinalizeFunc
	maxRounds        int
	toolErrorsResult bool
	executor         *Executor
}

// ToolLoopOption configures a ToolLoop.
type ToolLoopOption func(*ToolLoop)

// WithMaxRounds sets the maximum number of tool execution passes.
func WithMaxRounds(n int) ToolLoopOption {
	return func(l *ToolLoop) {
		l.maxRounds = n
	}
}

// WithToolErrorsAsResults reports failing tool calls back to the model as
// error results instead of aborting the loop.
func WithToolErrorsAsResults() ToolLoopOption {
	return func(l *ToolLoop) {
		l.toolErrorsResult = true
	}
}

// ToolLoopResult is the outcome of a completed loop.
type ToolLoopResult struct {
	// Messages is the full conversation including the seed.
	Messages []model.Message
	// Output is the value produced by the finalize step.
	Output any
	// Rounds is the number of tool execution passes.
	Rounds int
}

// NewToolLoop builds a tool loop. A nil finalize returns the content of
// the last assistant message.
func NewToolLoop(
	decider model.ToolCaller,
	tools []tool.CallableTool,
	finalize FinalizeFunc,
	opts ...ToolLoopOption,
) (*ToolLoop, error) {
	if decider == nil {
		return nil, errors.New("tool loop requires a decision model")
	}
	l := &ToolLoop{
		decider:   decider,
		tools:     make(map[string]tool.CallableTool, len(tools)),
		finalize:  finalize,
		maxRounds: DefaultMaxRounds,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxRounds <= 0 {
		return nil, fmt.Errorf("max rounds must be positive, got %d", l.maxRounds)
	}
	for _, t := range tools {
		decl := t.Declaration()
		if _, dup := l.tools[decl.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", decl.Name)
		}
		l.tools[decl.Name] = t
		l.declarations = append(l.declarations, decl)
	}
	if l.finalize == nil {
		l.finalize = lastContent
	}

	schema := NewStateSchema().
		AddField(StateKeyMessages, StateField{
			Type:    reflect.TypeOf([]model.Message{}),
			Reducer: AppendReducer,
			Default: func() any { return []model.Message{} },
		}).
		AddField(StateKeyRounds, StateField{
			Type:    reflect.TypeOf(0),
			Default: func() any { return 0 },
		}).
		AddField(StateKeyOutput, StateField{})

	g, err := NewStateGraph(schema).
		AddNode(loopNodeDecide, l.decide,
			WithDescription("asks the decision model for the next step"),
			WithOwnedFields(StateKeyMessages)).
		AddNode(loopNodeTools, l.executeTools,
			WithDescription("executes every pending tool call"),
			WithOwnedFields(StateKeyMessages, StateKeyRounds)).
		AddNode(loopNodeFinalize, l.finish,
			WithDescription("parses the final answer"),
			WithOwnedFields(StateKeyOutput)).
		SetEntryPoint(loopNodeDecide).
		AddConditionalEdges(loopNodeDecide, routeAfterDecide, map[string]string{
			routeTools:    loopNodeTools,
			routeFinalize: loopNodeFinalize,
		}, WithRouteKeys(routeTools, routeFinalize)).
		AddEdge(loopNodeTools, loopNodeDecide).
		SetFinishPoint(loopNodeFinalize).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("compile tool loop: %w", err)
	}
	// Each round costs two steps; the rest covers the closing decide and
	// finalize so MaxRoundsError always fires before the cycle bound.
	l.executor, err = NewExecutor(g, WithMaxSteps(2*l.maxRounds+4))
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Declarations returns the tools offered to the decision model.
func (l *ToolLoop) Declarations() []*tool.Declaration {
	return l.declarations
}

// Run executes the loop seeded with messages.
func (l *ToolLoop) Run(ctx context.Context, messages []model.Message) (*ToolLoopResult, error) {
	if len(messages) == 0 {
		return nil, errors.New("tool loop needs at least one seed message")
	}
	final, err := l.executor.Invoke(ctx, State{StateKeyMessages: messages})
	if err != nil {
		return nil, unwrapLoopError(err)
	}
	msgs, _ := GetStateValue[[]model.Message](final, StateKeyMessages)
	rounds, _ := GetStateValue[int](final, StateKeyRounds)
	return &ToolLoopResult{
		Messages: msgs,
		Output:   final[StateKeyOutput],
		Rounds:   rounds,
	}, nil
}

// unwrapLoopError strips the NodeError of the inner graph so callers see
// the capability error itself.
func unwrapLoopError(err error) error {
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne.Cause
	}
	return err
}

func routeAfterDecide(state State) string {
	msgs, _ := GetStateValue[[]model.Message](state, StateKeyMessages)
	if len(msgs) > 0 && msgs[len(msgs)-1].HasToolCalls() {
		return routeTools
	}
	return routeFinalize
}

func (l *ToolLoop) decide(ctx context.Context, state State) (State, error) {
	msgs, _ := GetStateValue[[]model.Message](state, StateKeyMessages)
	if pending := model.PendingToolCalls(msgs); len(pending) > 0 {
		return nil, fmt.Errorf("%d tool calls have no result", len(pending))
	}
	msg, err := l.decider.Decide(ctx, msgs, l.declarations)
	if err != nil {
		var ce *model.CompletionError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &model.CompletionError{Model: "decider", Cause: err}
	}
	msg.Role = model.RoleAssistant
	return State{StateKeyMessages: []model.Message{msg}}, nil
}

func (l *ToolLoop) executeTools(ctx context.Context, state State) (State, error) {
	rounds, _ := GetStateValue[int](state, StateKeyRounds)
	if rounds >= l.maxRounds {
		return nil, &MaxRoundsError{Max: l.maxRounds}
	}
	msgs, _ := GetStateValue[[]model.Message](state, StateKeyMessages)
	pending := model.PendingToolCalls(msgs)
	results := make([]model.Message, 0, len(pending))
	for _, call := range pending {
		content, err := l.callTool(ctx, call)
		if err != nil {
			if !l.toolErrorsResult {
				return nil, err
			}
			log.Warnf("tool call %s reported back as error: %v", call.ID, err)
			content = fmt.Sprintf(`{"error":%q}`, err.Error())
		}
		results = append(results, model.NewToolMessage(call.ID, call.Function.Name, content))
	}
	return State{
		StateKeyMessages: results,
		StateKeyRounds:   rounds + 1,
	}, nil
}

func (l *ToolLoop) callTool(ctx context.Context, call model.ToolCall) (content string, err error) {
	name := call.Function.Name
	ctx, span := trace.Tracer.Start(ctx, "execute_tool "+name,
		oteltrace.WithAttributes(
			attribute.String("tool.name", name),
			attribute.String("tool.call_id", call.ID),
		))
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metric.ToolCalls.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("tool.name", name),
			attribute.String("status", status),
		))
		span.End()
	}()

	t, ok := l.tools[name]
	if !ok {
		return "", &tool.Error{Tool: name, CallID: call.ID, Cause: ErrToolNotFound}
	}
	out, err := t.Call(ctx, call.Function.Arguments)
	if err != nil {
		return "", &tool.Error{Tool: name, CallID: call.ID, Cause: err}
	}
	if s, ok := out.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", &tool.Error{Tool: name, CallID: call.ID, Cause: fmt.Errorf("encode result: %w", err)}
	}
	return string(b), nil
}

func (l *ToolLoop) finish(ctx context.Context, state State) (State, error) {
	msgs, _ := GetStateValue[[]model.Message](state, StateKeyMessages)
	out, err := l.finalize(ctx, msgs)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return State{StateKeyOutput: out}, nil
}

func lastContent(_ context.Context, messages []model.Message) (any, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleAssistant {
			return messages[i].Content, nil
		}
	}
	return "", nil
}
