// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Azure/azure-ai-agentserver-go/agentserver"
)

// InvokeOption configures the handler built by [NewInvokeHandler].
type InvokeOption func(*invokeHandler)

// WithSessionHistory keeps the conversation of each session id in history
// and replays it ahead of every new request for that session. A nil history
// means a fresh in-memory one.
func WithSessionHistory(history *SessionHistory) InvokeOption {
	return func(h *invokeHandler) {
		if history == nil {
			history = NewSessionHistory(nil)
		}
		h.history = history
	}
}

// WithRunMiddleware wraps non-streaming agent runs made by the handler.
func WithRunMiddleware(mws ...AgentMiddleware) InvokeOption {
	return func(h *invokeHandler) { h.middleware = append(h.middleware, mws...) }
}

// WithInvokeLogger sets the logger used for history failures.
func WithInvokeLogger(logger *slog.Logger) InvokeOption {
	return func(h *invokeHandler) { h.logger = logger }
}

type invokeHandler struct {
	agent      Agent
	history    *SessionHistory
	middleware []AgentMiddleware
	logger     *slog.Logger
}

// NewInvokeHandler adapts agent to an invoke function for [agentserver.New].
//
// Input items become messages and a resume payload becomes a trailing
// function result message. When the caller asks for a stream and agent is a
// [StreamingAgent], text arrives as message.delta events; otherwise the
// handler returns a single result. A pending function call turns into an
// interrupt in both cases.
func NewInvokeHandler(agent Agent, opts ...InvokeOption) agentserver.ContextFunc {
	h := &invokeHandler{
		agent:  agent,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h.invoke
}

func (h *invokeHandler) invoke(ctx context.Context, req *agentserver.Request) (agentserver.Output, error) {
	input := ToMessages(req)
	messages, err := h.withHistory(ctx, req.SessionID, input)
	if err != nil {
		return agentserver.Output{}, err
	}

	if req.Stream {
		if sa, ok := h.agent.(StreamingAgent); ok {
			return agentserver.StreamOutput(h.stream(ctx, sa, req.SessionID, messages, input)), nil
		}
	}

	run := chainAgentMiddleware(func(ctx context.Context, r *AgentRequest) (*AgentResponse, error) {
		return h.agent.Run(ctx, r.Messages)
	}, h.middleware...)

	resp, err := run(ctx, &AgentRequest{Messages: messages, SessionID: req.SessionID})
	if err != nil {
		return agentserver.Output{}, err
	}
	if resp != nil {
		h.record(ctx, req.SessionID, input, resp.Messages)
	}
	return agentserver.ResultOutput(ToResult(resp)), nil
}

func (h *invokeHandler) stream(ctx context.Context, agent StreamingAgent, sessionID string, messages, input []Message) *agentserver.EventStream {
	return agentserver.NewEventStream(ctx, func(ctx context.Context, ch chan<- agentserver.Event) error {
		updates, err := agent.RunStream(ctx, messages)
		if err != nil {
			return err
		}
		defer updates.Close()

		var collected []AgentResponseUpdate
		for {
			u, ok, err := updates.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			collected = append(collected, u)
			if text := u.Text(); text != "" {
				if err := agentserver.Emit(ctx, ch, agentserver.DeltaEvent(text)); err != nil {
					return err
				}
			}
		}

		resp := AgentResponseFromUpdates(collected)
		h.record(ctx, sessionID, input, resp.Messages)

		result := ToResult(resp)
		if result.Interrupt != nil {
			if err := agentserver.Emit(ctx, ch, agentserver.InterruptEvent(*result.Interrupt)); err != nil {
				return err
			}
		}
		return agentserver.Emit(ctx, ch, agentserver.CompletedEvent(result))
	})
}

func (h *invokeHandler) withHistory(ctx context.Context, sessionID string, input []Message) ([]Message, error) {
	if h.history == nil {
		return input, nil
	}
	past, err := h.history.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return append(past, input...), nil
}

func (h *invokeHandler) record(ctx context.Context, sessionID string, input, output []Message) {
	if h.history == nil {
		return
	}
	msgs := append(append([]Message(nil), input...), output...)
	if err := h.history.Append(ctx, sessionID, msgs...); err != nil {
		h.logger.WarnContext(ctx, "failed to record session history", "error", err)
	}
}

// ToMessages converts the input items of req into messages, followed by the
// resume payload when there is one. Plain strings are user messages and
// items without text are skipped.
func ToMessages(req *agentserver.Request) []Message {
	if req == nil {
		return nil
	}
	var msgs []Message
	for _, item := range req.Input {
		text := item.Text()
		if text == "" {
			continue
		}
		role := RoleUser
		if !item.IsString() {
			role = ParseRole(item.Role)
		}
		msgs = append(msgs, NewMessage(role, text))
	}
	if r := req.Resume; r != nil {
		name := r.FunctionName
		if name == "" {
			name = "unknown"
		}
		result := r.Result
		if result == nil {
			result = ""
		}
		msgs = append(msgs, NewFunctionResultMessage(r.CallID, name, result))
	}
	return msgs
}

// ToResult converts an agent response into an invocation result. Text
// parts are joined by a single space; a response without text has a nil
// message. The first pending function call becomes the interrupt.
func ToResult(resp *AgentResponse) *agentserver.Result {
	if resp == nil {
		return &agentserver.Result{Status: agentserver.StatusCompleted, Annotations: []any{}}
	}
	var message *string
	if texts := resp.Texts(); len(texts) > 0 {
		s := strings.Join(texts, " ")
		message = &s
	}
	if call := resp.PendingCall(); call != nil {
		return agentserver.NewInterruptResult(message, interruptFor(call))
	}
	return &agentserver.Result{
		Status:      agentserver.StatusCompleted,
		Message:     message,
		Annotations: []any{},
	}
}

func interruptFor(c Content) agentserver.Interrupt {
	var fc FunctionCallContent
	switch v := c.(type) {
	case *FunctionCallContent:
		fc = *v
	case *ApprovalRequestContent:
		fc = FunctionCallContent{CallID: v.CallID, Name: v.Name, Arguments: v.Arguments}
	}
	if fc.Name == "" {
		fc.Name = "unknown"
	}
	return agentserver.Interrupt{
		ID:           fc.CallID,
		Message:      "Function call: " + fc.Name,
		FunctionName: fc.Name,
		Arguments:    fc.ParsedArguments(),
	}
}
