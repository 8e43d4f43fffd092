// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"encoding/json"
	"strings"

	af "github.com/Azure/azure-ai-agentserver-go/agentframework"
)

// chatRequest is the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	MaxTokens     *int           `json:"max_completion_tokens,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
	Seed          *int           `json:"seed,omitempty"`
	Tools         []toolSpec     `json:"tools,omitempty"`
	ToolChoice    string         `json:"tool_choice,omitempty"`
	User          string         `json:"user,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`

	extra map[string]any
}

// MarshalJSON folds provider-specific extras into the top-level object.
func (r chatRequest) MarshalJSON() ([]byte, error) {
	type alias chatRequest
	b, err := json.Marshal(alias(r))
	if err != nil || len(r.extra) == 0 {
		return b, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	for k, v := range r.extra {
		if _, taken := obj[k]; taken {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Parameters  *af.Schema `json:"parameters,omitempty"`
}

// buildRequest converts framework types into an OpenAI API request.
func buildRequest(messages []af.Message, opts *af.ChatOptions, cfg *clientConfig) *chatRequest {
	opts = af.MergeChatOptions(&af.ChatOptions{ModelID: cfg.model, Instructions: cfg.instructions}, opts)

	req := &chatRequest{
		Model:       opts.ModelID,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.Stop,
		Seed:        opts.Seed,
		ToolChoice:  string(opts.ToolChoice),
		User:        opts.User,
		extra:       opts.Extra,
	}
	for _, fn := range opts.Functions {
		req.Tools = append(req.Tools, toolSpec{
			Type: "function",
			Function: functionSpec{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
			},
		})
	}
	if len(req.Tools) == 0 {
		req.ToolChoice = ""
	}

	req.Messages = convertMessages(af.PrependInstructions(messages, opts.Instructions))
	return req
}

// convertMessages translates framework Messages into OpenAI chat messages.
// Function results become tool messages of their own, placed where they
// appear in the conversation.
func convertMessages(messages []af.Message) []chatMessage {
	result := make([]chatMessage, 0, len(messages))

	for _, msg := range messages {
		cm := chatMessage{
			Role: string(msg.Role),
			Name: msg.AuthorName,
		}
		if msg.Role == af.RoleTool {
			cm.Role = string(af.RoleUser)
		}

		var text []string
		for _, c := range msg.Contents {
			switch v := c.(type) {
			case *af.TextContent:
				text = append(text, v.Text)
			case *af.FunctionCallContent:
				cm.ToolCalls = append(cm.ToolCalls, toolCall{
					ID:       v.CallID,
					Type:     "function",
					Function: functionCall{Name: v.Name, Arguments: v.Arguments},
				})
			case *af.FunctionResultContent:
				out := marshalResult(v.Result)
				result = append(result, chatMessage{
					Role:       string(af.RoleTool),
					Content:    &out,
					ToolCallID: v.CallID,
				})
			}
		}

		if len(text) > 0 {
			s := strings.Join(text, "")
			cm.Content = &s
		}
		if cm.Content != nil || len(cm.ToolCalls) > 0 {
			cm.Role = roleFor(cm)
			result = append(result, cm)
		}
	}

	return result
}

// roleFor keeps tool calls on assistant messages, where the API expects them.
func roleFor(cm chatMessage) string {
	if len(cm.ToolCalls) > 0 {
		return string(af.RoleAssistant)
	}
	return cm.Role
}

func marshalResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
