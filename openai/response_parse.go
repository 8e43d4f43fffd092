// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"cmp"
	"slices"

	af "github.com/Azure/azure-ai-agentserver-go/agentframework"
)

// chatCompletionResponse is the OpenAI Chat Completions API response.
type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage,omitempty"`
}

type choice struct {
	Index        int         `json:"index"`
	Message      respMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type respMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *usage) details() af.UsageDetails {
	if u == nil {
		return af.UsageDetails{}
	}
	return af.UsageDetails{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}

// chatCompletionChunk is a single SSE chunk in streaming mode.
type chatCompletionChunk struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
	Usage   *usage        `json:"usage,omitempty"`
	Error   *apiError     `json:"error,omitempty"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   *string         `json:"content,omitempty"`
	ToolCalls []chunkToolCall `json:"tool_calls,omitempty"`
}

// chunkToolCall is a fragment of a tool call. The first fragment for an
// index carries the id and name; later ones append to the arguments.
type chunkToolCall struct {
	Index    int          `json:"index"`
	ID       string       `json:"id,omitempty"`
	Function functionCall `json:"function"`
}

// parseChatResponse converts the OpenAI response into framework types.
func parseChatResponse(raw *chatCompletionResponse) *af.ChatResponse {
	resp := &af.ChatResponse{
		ResponseID: raw.ID,
		ModelID:    raw.Model,
		Usage:      raw.Usage.details(),
	}

	if len(raw.Choices) > 0 {
		c := raw.Choices[0]
		resp.FinishReason = mapFinishReason(c.FinishReason)

		msg := af.Message{Role: af.RoleAssistant}
		if c.Message.Role != "" {
			msg.Role = af.Role(c.Message.Role)
		}
		if c.Message.Content != nil && *c.Message.Content != "" {
			msg.Contents = append(msg.Contents, &af.TextContent{Text: *c.Message.Content})
		}
		for _, tc := range c.Message.ToolCalls {
			msg.Contents = append(msg.Contents, &af.FunctionCallContent{
				CallID:    tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		resp.Messages = []af.Message{msg}
	}

	return resp
}

// chunkParser turns stream chunks into updates. Text is passed through as
// it arrives; tool call fragments are held back and released as complete
// calls once the choice finishes.
type chunkParser struct {
	pending map[int]*af.FunctionCallContent
}

func (p *chunkParser) parse(chunk *chatCompletionChunk) *af.ChatResponseUpdate {
	update := &af.ChatResponseUpdate{
		ResponseID: chunk.ID,
		ModelID:    chunk.Model,
		Usage:      chunk.Usage.details(),
	}
	if len(chunk.Choices) == 0 {
		return update
	}

	c := chunk.Choices[0]
	if c.Delta.Role != "" {
		update.Role = af.Role(c.Delta.Role)
	}
	if c.Delta.Content != nil && *c.Delta.Content != "" {
		update.Contents = append(update.Contents, &af.TextContent{Text: *c.Delta.Content})
	}
	for _, frag := range c.Delta.ToolCalls {
		p.add(frag)
	}
	if c.FinishReason != nil {
		update.FinishReason = mapFinishReason(*c.FinishReason)
		update.Contents = append(update.Contents, p.flush()...)
	}
	return update
}

func (p *chunkParser) add(frag chunkToolCall) {
	if p.pending == nil {
		p.pending = make(map[int]*af.FunctionCallContent)
	}
	call, ok := p.pending[frag.Index]
	if !ok {
		call = &af.FunctionCallContent{}
		p.pending[frag.Index] = call
	}
	if frag.ID != "" {
		call.CallID = frag.ID
	}
	if frag.Function.Name != "" {
		call.Name = frag.Function.Name
	}
	call.Arguments += frag.Function.Arguments
}

// flush returns the held tool calls in index order.
func (p *chunkParser) flush() af.Contents {
	if len(p.pending) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(p.pending))
	for i := range p.pending {
		indexes = append(indexes, i)
	}
	slices.SortFunc(indexes, cmp.Compare[int])

	out := make(af.Contents, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, p.pending[i])
	}
	p.pending = nil
	return out
}

func mapFinishReason(s string) af.FinishReason {
	switch s {
	case "stop":
		return af.FinishReasonStop
	case "length":
		return af.FinishReasonLength
	case "tool_calls":
		return af.FinishReasonToolCalls
	case "content_filter":
		return af.FinishReasonContentFilter
	default:
		return af.FinishReason(s)
	}
}
