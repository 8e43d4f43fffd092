// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Agent answers a conversation with a complete response.
type Agent interface {
	Run(ctx context.Context, messages []Message) (*AgentResponse, error)
}

// StreamingAgent is an [Agent] that can also produce incremental updates.
type StreamingAgent interface {
	Agent
	RunStream(ctx context.Context, messages []Message) (*ResponseStream[AgentResponseUpdate], error)
}

// AgentFunc adapts an ordinary function to the [Agent] interface.
type AgentFunc func(ctx context.Context, messages []Message) (*AgentResponse, error)

// Run calls f.
func (f AgentFunc) Run(ctx context.Context, messages []Message) (*AgentResponse, error) {
	return f(ctx, messages)
}

// ChatAgent is a [StreamingAgent] backed by a [ChatClient]. It adds
// instructions, default options, function declarations and middleware to
// every call.
//
// Create one with [NewChatAgent] and functional options:
//
//	agent := agentframework.NewChatAgent(client,
//	    agentframework.WithName("assistant"),
//	    agentframework.WithInstructions("You are helpful."),
//	    agentframework.WithFunctions(weather),
//	)
type ChatAgent struct {
	id              string
	name            string
	description     string
	client          ChatClient
	instructions    string
	functions       []FunctionDeclaration
	defaultOptions  *ChatOptions
	agentMiddleware []AgentMiddleware
	chatMiddleware  []ChatMiddleware
}

// AgentOption configures a [ChatAgent] via [NewChatAgent].
type AgentOption func(*ChatAgent)

// WithName sets the agent's display name.
func WithName(name string) AgentOption {
	return func(a *ChatAgent) { a.name = name }
}

// WithDescription sets the agent's description.
func WithDescription(desc string) AgentOption {
	return func(a *ChatAgent) { a.description = desc }
}

// WithInstructions sets the system instructions for the agent.
func WithInstructions(instructions string) AgentOption {
	return func(a *ChatAgent) { a.instructions = instructions }
}

// WithFunctions declares functions the model may ask the caller to run.
func WithFunctions(fns ...FunctionDeclaration) AgentOption {
	return func(a *ChatAgent) { a.functions = append(a.functions, fns...) }
}

// WithDefaultOptions sets default [ChatOptions] for all requests.
func WithDefaultOptions(opts *ChatOptions) AgentOption {
	return func(a *ChatAgent) { a.defaultOptions = opts }
}

// WithAgentMiddleware adds [AgentMiddleware] around non-streaming runs.
func WithAgentMiddleware(mws ...AgentMiddleware) AgentOption {
	return func(a *ChatAgent) { a.agentMiddleware = append(a.agentMiddleware, mws...) }
}

// WithChatMiddleware adds [ChatMiddleware] around non-streaming model calls.
func WithChatMiddleware(mws ...ChatMiddleware) AgentOption {
	return func(a *ChatAgent) { a.chatMiddleware = append(a.chatMiddleware, mws...) }
}

// NewChatAgent creates a ChatAgent with the given [ChatClient] and options.
func NewChatAgent(client ChatClient, opts ...AgentOption) *ChatAgent {
	a := &ChatAgent{
		id:     uuid.NewString(),
		client: client,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the agent's unique identifier.
func (a *ChatAgent) ID() string { return a.id }

// Name returns the agent's display name.
func (a *ChatAgent) Name() string { return a.name }

// Description returns the agent's description.
func (a *ChatAgent) Description() string { return a.description }

// Run sends messages to the model and returns a complete response.
func (a *ChatAgent) Run(ctx context.Context, messages []Message) (*AgentResponse, error) {
	handler := chainAgentMiddleware(a.run, a.agentMiddleware...)
	return handler(ctx, &AgentRequest{Messages: messages})
}

// RunStream sends messages to the model and returns its incremental updates.
func (a *ChatAgent) RunStream(ctx context.Context, messages []Message) (*ResponseStream[AgentResponseUpdate], error) {
	opts := a.chatOptions()
	chatStream, err := a.client.StreamResponse(ctx, messages, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return MapStream(ctx, chatStream, func(u ChatResponseUpdate) AgentResponseUpdate {
		return AgentResponseUpdate{
			Contents:   u.Contents,
			Role:       u.Role,
			AgentID:    a.id,
			ResponseID: u.ResponseID,
			Usage:      u.Usage,
			Raw:        u.Raw,
		}
	}), nil
}

func (a *ChatAgent) run(ctx context.Context, req *AgentRequest) (*AgentResponse, error) {
	opts := a.chatOptions()

	slog.DebugContext(ctx, "agent run",
		"agent_id", a.id,
		"agent_name", a.name,
		"message_count", len(req.Messages),
		"function_count", len(opts.Functions),
	)

	handler := chainChatMiddleware(a.client.Response, a.chatMiddleware...)
	chatResp, err := handler(ctx, req.Messages, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return &AgentResponse{
		Messages:   chatResp.Messages,
		ResponseID: chatResp.ResponseID,
		AgentID:    a.id,
		Usage:      chatResp.Usage,
		Raw:        chatResp.Raw,
	}, nil
}

func (a *ChatAgent) chatOptions() *ChatOptions {
	return MergeChatOptions(a.defaultOptions, &ChatOptions{
		Instructions: a.instructions,
		Functions:    a.functions,
	})
}
