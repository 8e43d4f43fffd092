// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "strings"

// ChatResponse is the complete (non-streaming) response from a [ChatClient].
type ChatResponse struct {
	Messages     []Message
	ResponseID   string
	ModelID      string
	FinishReason FinishReason
	Usage        UsageDetails
	Raw          any
}

// Text returns the concatenated text of all messages in this response.
func (r *ChatResponse) Text() string {
	var b strings.Builder
	for i := range r.Messages {
		b.WriteString(r.Messages[i].Text())
	}
	return b.String()
}

// ChatResponseUpdate is a single chunk received during streaming from a [ChatClient].
type ChatResponseUpdate struct {
	Contents     Contents
	Role         Role
	ResponseID   string
	ModelID      string
	FinishReason FinishReason
	Usage        UsageDetails
	Raw          any
}

// Text returns the concatenated text of all [TextContent] items in this update.
func (u *ChatResponseUpdate) Text() string { return contentsText(u.Contents) }

// AgentResponse is the complete response from an [Agent] run.
type AgentResponse struct {
	Messages   []Message
	ResponseID string
	AgentID    string
	Usage      UsageDetails
	Raw        any
}

// Texts returns every non-empty [TextContent] across the messages, in order.
func (r *AgentResponse) Texts() []string {
	var texts []string
	for _, m := range r.Messages {
		for _, c := range m.Contents {
			if tc, ok := c.(*TextContent); ok && tc.Text != "" {
				texts = append(texts, tc.Text)
			}
		}
	}
	return texts
}

// Text returns the text parts joined by a single space.
func (r *AgentResponse) Text() string { return strings.Join(r.Texts(), " ") }

// PendingCall returns the first function call or approval request in the
// response, or nil when the agent is not waiting on the caller.
func (r *AgentResponse) PendingCall() Content {
	for _, m := range r.Messages {
		for _, c := range m.Contents {
			switch c.(type) {
			case *FunctionCallContent, *ApprovalRequestContent:
				return c
			}
		}
	}
	return nil
}

// AgentResponseUpdate is a single streaming chunk from an [Agent] run.
type AgentResponseUpdate struct {
	Contents   Contents
	Role       Role
	AgentID    string
	ResponseID string
	Usage      UsageDetails
	Raw        any
}

// Text returns the concatenated text of all [TextContent] items in this update.
func (u *AgentResponseUpdate) Text() string { return contentsText(u.Contents) }

func contentsText(cs Contents) string {
	var b strings.Builder
	for _, c := range cs {
		if tc, ok := c.(*TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// ChatResponseFromUpdates builds a complete [ChatResponse] by merging
// a sequence of streaming updates.
func ChatResponseFromUpdates(updates []ChatResponseUpdate) *ChatResponse {
	resp := &ChatResponse{}
	var all Contents
	for _, u := range updates {
		all = append(all, u.Contents...)
		if u.ResponseID != "" {
			resp.ResponseID = u.ResponseID
		}
		if u.ModelID != "" {
			resp.ModelID = u.ModelID
		}
		if u.FinishReason != "" {
			resp.FinishReason = u.FinishReason
		}
		if u.Usage.TotalTokens > 0 {
			resp.Usage = u.Usage
		}
	}
	resp.Messages = mergedMessage(updateRole(updates, func(u ChatResponseUpdate) Role { return u.Role }), all)
	return resp
}

// AgentResponseFromUpdates builds a complete [AgentResponse] by merging
// a sequence of streaming updates.
func AgentResponseFromUpdates(updates []AgentResponseUpdate) *AgentResponse {
	resp := &AgentResponse{}
	var all Contents
	for _, u := range updates {
		all = append(all, u.Contents...)
		if u.AgentID != "" {
			resp.AgentID = u.AgentID
		}
		if u.ResponseID != "" {
			resp.ResponseID = u.ResponseID
		}
		if u.Usage.TotalTokens > 0 {
			resp.Usage = u.Usage
		}
	}
	resp.Messages = mergedMessage(updateRole(updates, func(u AgentResponseUpdate) Role { return u.Role }), all)
	return resp
}

func updateRole[T any](updates []T, role func(T) Role) Role {
	for _, u := range updates {
		if r := role(u); r != "" {
			return r
		}
	}
	return RoleAssistant
}

func mergedMessage(role Role, cs Contents) []Message {
	merged := mergeContentDeltas(cs)
	if len(merged) == 0 {
		return nil
	}
	return []Message{{Role: role, Contents: merged}}
}

// mergeContentDeltas consolidates sequential TextContent runs into single
// items, and passes non-text content through as-is.
func mergeContentDeltas(cs Contents) Contents {
	var merged Contents
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			merged = append(merged, &TextContent{Text: text.String()})
			text.Reset()
		}
	}
	for _, c := range cs {
		if tc, ok := c.(*TextContent); ok {
			text.WriteString(tc.Text)
			continue
		}
		flush()
		merged = append(merged, c)
	}
	flush()
	return merged
}
