// Copyright (c) Microsoft. All rights reserved.

package agentframework_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	af "github.com/Azure/azure-ai-agentserver-go/agentframework"
)

func okClient(text string) *mockClient {
	return &mockClient{
		responseFn: func(context.Context, []af.Message, *af.ChatOptions) (*af.ChatResponse, error) {
			return &af.ChatResponse{
				Messages: []af.Message{af.NewAssistantMessage(text)},
				Usage:    af.UsageDetails{InputTokens: 3, OutputTokens: 2, TotalTokens: 5},
			}, nil
		},
	}
}

func TestAgentMiddleware_ExecutionOrder(t *testing.T) {
	var order []string
	record := func(name string) af.AgentMiddleware {
		return func(next af.AgentHandler) af.AgentHandler {
			return func(ctx context.Context, req *af.AgentRequest) (*af.AgentResponse, error) {
				order = append(order, name+"-before")
				resp, err := next(ctx, req)
				order = append(order, name+"-after")
				return resp, err
			}
		}
	}

	agent := af.NewChatAgent(okClient("ok"), af.WithAgentMiddleware(record("mw1"), record("mw2")))
	_, err := agent.Run(context.Background(), []af.Message{af.NewUserMessage("hi")})
	require.NoError(t, err)

	assert.Equal(t, []string{"mw1-before", "mw2-before", "mw2-after", "mw1-after"}, order)
}

func TestAgentMiddleware_ShortCircuit(t *testing.T) {
	client := okClient("from model")
	called := false
	client.responseFn = func(context.Context, []af.Message, *af.ChatOptions) (*af.ChatResponse, error) {
		called = true
		return &af.ChatResponse{}, nil
	}
	cached := func(af.AgentHandler) af.AgentHandler {
		return func(context.Context, *af.AgentRequest) (*af.AgentResponse, error) {
			return &af.AgentResponse{Messages: []af.Message{af.NewAssistantMessage("cached")}}, nil
		}
	}

	resp, err := af.NewChatAgent(client, af.WithAgentMiddleware(cached)).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "cached", resp.Text())
	assert.False(t, called)
}

func TestChatMiddleware_SeesMessagesAndOptions(t *testing.T) {
	var seen []af.Message
	var seenOpts *af.ChatOptions
	spy := func(next af.ChatHandler) af.ChatHandler {
		return func(ctx context.Context, msgs []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
			seen, seenOpts = msgs, opts
			return next(ctx, msgs, opts)
		}
	}

	agent := af.NewChatAgent(okClient("ok"), af.WithChatMiddleware(spy), af.WithInstructions("sys"))
	_, err := agent.Run(context.Background(), []af.Message{af.NewUserMessage("hi")})
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, "hi", seen[0].Text())
	assert.Equal(t, "sys", seenOpts.Instructions)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	agent := af.NewChatAgent(okClient("ok"), af.WithAgentMiddleware(af.LoggingMiddleware(logger)))
	_, err := agent.Run(context.Background(), []af.Message{af.NewUserMessage("hi")})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "agent run started")
	assert.Contains(t, out, "agent run completed")
	assert.Contains(t, out, "input_tokens=3")
}

func TestLoggingMiddleware_Failure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	client := &mockClient{
		responseFn: func(context.Context, []af.Message, *af.ChatOptions) (*af.ChatResponse, error) {
			return nil, errors.New("upstream down")
		},
	}

	_, err := af.NewChatAgent(client, af.WithAgentMiddleware(af.LoggingMiddleware(logger))).Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "agent run failed")
	assert.Contains(t, buf.String(), "upstream down")
}

func TestTracingMiddleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(provider)

	agent := af.NewChatAgent(okClient("ok"), af.WithAgentMiddleware(af.TracingMiddleware("helper")))
	_, err := agent.Run(context.Background(), []af.Message{af.NewUserMessage("hi")})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "invoke_agent helper", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("gen_ai.usage.output_tokens", 2))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestTracingMiddleware_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(provider)

	failing := af.AgentMiddleware(func(af.AgentHandler) af.AgentHandler {
		return func(context.Context, *af.AgentRequest) (*af.AgentResponse, error) {
			return nil, af.ErrContentFilter
		}
	})
	agent := af.NewChatAgent(okClient("ok"), af.WithAgentMiddleware(af.TracingMiddleware("helper"), failing))
	_, err := agent.Run(context.Background(), nil)
	require.ErrorIs(t, err, af.ErrContentFilter)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
