// Copyright (c) Microsoft. All rights reserved.

package agentframework_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	af "github.com/Azure/azure-ai-agentserver-go/agentframework"
)

// mockClient is a ChatClient driven by per-test functions.
type mockClient struct {
	responseFn func(ctx context.Context, msgs []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error)
	streamFn   func(ctx context.Context, msgs []af.Message, opts *af.ChatOptions) (*af.ResponseStream[af.ChatResponseUpdate], error)
}

func (m *mockClient) Response(ctx context.Context, msgs []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
	return m.responseFn(ctx, msgs, opts)
}

func (m *mockClient) StreamResponse(ctx context.Context, msgs []af.Message, opts *af.ChatOptions) (*af.ResponseStream[af.ChatResponseUpdate], error) {
	return m.streamFn(ctx, msgs, opts)
}

func TestChatAgent_Run(t *testing.T) {
	var gotOpts *af.ChatOptions
	client := &mockClient{
		responseFn: func(_ context.Context, msgs []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
			gotOpts = opts
			return &af.ChatResponse{
				Messages:   []af.Message{af.NewAssistantMessage("I'm here to help!")},
				ResponseID: "resp-1",
				Usage:      af.UsageDetails{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
			}, nil
		},
	}

	weather := af.DeclareFunction[weatherArgs]("get_weather", "Get current weather")
	agent := af.NewChatAgent(client,
		af.WithName("test-agent"),
		af.WithDescription("answers questions"),
		af.WithInstructions("You are helpful."),
		af.WithFunctions(weather),
	)
	assert.Equal(t, "test-agent", agent.Name())
	assert.Equal(t, "answers questions", agent.Description())
	assert.NotEmpty(t, agent.ID())

	resp, err := agent.Run(context.Background(), []af.Message{af.NewUserMessage("hi")})
	require.NoError(t, err)

	assert.Equal(t, "I'm here to help!", resp.Text())
	assert.Equal(t, agent.ID(), resp.AgentID)
	assert.Equal(t, "resp-1", resp.ResponseID)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	require.NotNil(t, gotOpts)
	assert.Equal(t, "You are helpful.", gotOpts.Instructions)
	require.Len(t, gotOpts.Functions, 1)
	assert.Equal(t, "get_weather", gotOpts.Functions[0].Name)
}

func TestChatAgent_DefaultOptions(t *testing.T) {
	temp := 0.2
	var gotOpts *af.ChatOptions
	client := &mockClient{
		responseFn: func(_ context.Context, _ []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
			gotOpts = opts
			return &af.ChatResponse{}, nil
		},
	}
	agent := af.NewChatAgent(client,
		af.WithDefaultOptions(&af.ChatOptions{ModelID: "gpt-4o", Temperature: &temp, Instructions: "Be brief."}),
		af.WithInstructions("Answer in French."),
	)

	_, err := agent.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", gotOpts.ModelID)
	assert.Equal(t, &temp, gotOpts.Temperature)
	assert.Equal(t, "Be brief.\nAnswer in French.", gotOpts.Instructions)
}

func TestChatAgent_RunError(t *testing.T) {
	boom := &af.ServiceError{StatusCode: 500, Message: "boom", Err: af.ErrService}
	client := &mockClient{
		responseFn: func(context.Context, []af.Message, *af.ChatOptions) (*af.ChatResponse, error) {
			return nil, boom
		},
	}

	_, err := af.NewChatAgent(client).Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, af.ErrExecution)
	assert.ErrorIs(t, err, af.ErrService)

	var svcErr *af.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, 500, svcErr.StatusCode)
}

func TestChatAgent_RunStream(t *testing.T) {
	client := &mockClient{
		streamFn: func(ctx context.Context, _ []af.Message, _ *af.ChatOptions) (*af.ResponseStream[af.ChatResponseUpdate], error) {
			return af.StreamOf(ctx,
				af.ChatResponseUpdate{Role: af.RoleAssistant, ResponseID: "r", Contents: af.Contents{&af.TextContent{Text: "Hel"}}},
				af.ChatResponseUpdate{Contents: af.Contents{&af.TextContent{Text: "lo"}}},
			), nil
		},
	}
	agent := af.NewChatAgent(client)

	stream, err := agent.RunStream(context.Background(), []af.Message{af.NewUserMessage("hi")})
	require.NoError(t, err)
	defer stream.Close()

	updates, err := stream.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, agent.ID(), updates[0].AgentID)
	assert.Equal(t, "Hel", updates[0].Text())

	resp := af.AgentResponseFromUpdates(updates)
	assert.Equal(t, "Hello", resp.Text())
	assert.Equal(t, "r", resp.ResponseID)
}

func TestChatAgent_RunStreamError(t *testing.T) {
	client := &mockClient{
		streamFn: func(context.Context, []af.Message, *af.ChatOptions) (*af.ResponseStream[af.ChatResponseUpdate], error) {
			return nil, af.ErrAuth
		},
	}
	_, err := af.NewChatAgent(client).RunStream(context.Background(), nil)
	assert.ErrorIs(t, err, af.ErrExecution)
	assert.ErrorIs(t, err, af.ErrAuth)
}

func TestAgentFunc(t *testing.T) {
	var agent af.Agent = af.AgentFunc(func(_ context.Context, msgs []af.Message) (*af.AgentResponse, error) {
		return &af.AgentResponse{Messages: []af.Message{af.NewAssistantMessage("echo: " + msgs[0].Text())}}, nil
	})
	resp, err := agent.Run(context.Background(), []af.Message{af.NewUserMessage("ping")})
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", resp.Text())

	_, streams := agent.(af.StreamingAgent)
	assert.False(t, streams)
}
