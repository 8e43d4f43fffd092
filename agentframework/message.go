// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "strings"

// Role identifies the author of a [Message].
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ParseRole maps a wire role name to a [Role]. Anything other than
// assistant or system is treated as the user.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(s)) {
	case RoleAssistant:
		return RoleAssistant
	case RoleSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// Message represents a single chat message exchanged with an agent or model.
type Message struct {
	Role       Role
	Contents   Contents
	AuthorName string
	MessageID  string

	// Raw holds the original provider-specific representation, if any.
	Raw any
}

// Text returns the concatenated text of all [TextContent] items in this message.
func (m *Message) Text() string {
	var b strings.Builder
	for _, c := range m.Contents {
		if tc, ok := c.(*TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// NewMessage creates a [Message] with a single text part.
func NewMessage(role Role, text string) Message {
	return Message{
		Role:     role,
		Contents: Contents{&TextContent{Text: text}},
	}
}

// NewUserMessage creates a user-role [Message] from a text string.
func NewUserMessage(text string) Message { return NewMessage(RoleUser, text) }

// NewAssistantMessage creates an assistant-role [Message] from a text string.
func NewAssistantMessage(text string) Message { return NewMessage(RoleAssistant, text) }

// NewSystemMessage creates a system-role [Message] from a text string.
func NewSystemMessage(text string) Message { return NewMessage(RoleSystem, text) }

// NewFunctionResultMessage creates a user-role [Message] carrying the result
// of a function call the agent paused on.
func NewFunctionResultMessage(callID, name string, result any) Message {
	return Message{
		Role: RoleUser,
		Contents: Contents{&FunctionResultContent{
			CallID: callID,
			Name:   name,
			Result: result,
		}},
	}
}

// PrependInstructions inserts a system message at the beginning of the message
// list if instructions are non-empty and no system message already exists.
func PrependInstructions(messages []Message, instructions string) []Message {
	if instructions == "" {
		return messages
	}
	for _, m := range messages {
		if m.Role == RoleSystem {
			return messages
		}
	}
	return append([]Message{NewSystemMessage(instructions)}, messages...)
}
