// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	af "github.com/Azure/azure-ai-agentserver-go/agentframework"
)

const completionsPath = "/chat/completions"

// Client implements [af.ChatClient] using the OpenAI Chat Completions API.
// Use [New] to create one.
type Client struct {
	tp      transport
	cfg     *clientConfig
	handler af.ChatHandler
}

var _ af.ChatClient = (*Client)(nil)

// New creates an OpenAI [Client] with the given API key and options. The key
// is ignored when [WithAzureCredential] is set.
//
//	client := openai.New(os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o"),
//	)
func New(apiKey string, opts ...Option) *Client {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	return newWithTransport(newHTTPTransport(apiKey, cfg), cfg)
}

func newWithTransport(tp transport, cfg *clientConfig) *Client {
	c := &Client{tp: tp, cfg: cfg}
	c.handler = c.coreResponse
	for i := len(cfg.chatMiddleware) - 1; i >= 0; i-- {
		c.handler = cfg.chatMiddleware[i](c.handler)
	}
	return c
}

// Response sends a non-streaming chat completion request and returns the
// complete response.
func (c *Client) Response(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
	return c.handler(ctx, messages, opts)
}

func (c *Client) coreResponse(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
	req := buildRequest(messages, opts, c.cfg)

	resp, err := c.tp.do(ctx, http.MethodPost, completionsPath, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %w", af.ErrService, err)
	}

	var raw chatCompletionResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", af.ErrInvalidResponse, err)
	}

	result := parseChatResponse(&raw)
	result.Raw = &raw
	return result, nil
}

// StreamResponse sends a streaming chat completion request and returns
// a [af.ResponseStream] that yields incremental updates. Tool calls are
// delivered whole, in the update that carries the finish reason.
func (c *Client) StreamResponse(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ResponseStream[af.ChatResponseUpdate], error) {
	req := buildRequest(messages, opts, c.cfg)
	req.Stream = true
	req.StreamOptions = &streamOptions{IncludeUsage: true}

	resp, err := c.tp.do(ctx, http.MethodPost, completionsPath, req)
	if err != nil {
		return nil, err
	}

	return af.NewResponseStream(ctx, func(ctx context.Context, ch chan<- af.ChatResponseUpdate) error {
		defer resp.Body.Close()
		return parseSSEStream(ctx, resp.Body, ch)
	}), nil
}

// parseSSEStream reads server-sent events from r and sends parsed updates to
// ch until [DONE], end of input, cancellation or an error event.
func parseSSEStream(ctx context.Context, r io.Reader, ch chan<- af.ChatResponseUpdate) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var parser chunkParser
	send := func(u *af.ChatResponseUpdate) error {
		select {
		case ch <- *u:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)

		if data == "[DONE]" {
			break
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			slog.DebugContext(ctx, "skipping malformed stream chunk", "error", err)
			continue
		}
		if chunk.Error != nil {
			return newServiceError(http.StatusInternalServerError, chunk.Error.Message, chunk.Error.Code)
		}

		update := parser.parse(&chunk)
		update.Raw = &chunk
		if err := send(update); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: read SSE stream: %w", af.ErrService, err)
	}

	// A stream cut short before the finish reason still yields its calls.
	if calls := parser.flush(); len(calls) > 0 {
		return send(&af.ChatResponseUpdate{Role: af.RoleAssistant, Contents: calls})
	}
	return nil
}
