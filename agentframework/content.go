// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "encoding/json"

// ContentType identifies the kind of content within a message.
type ContentType string

const (
	ContentTypeText            ContentType = "text"
	ContentTypeFunctionCall    ContentType = "functionCall"
	ContentTypeFunctionResult  ContentType = "functionResult"
	ContentTypeApprovalRequest ContentType = "functionApprovalRequest"
)

// Content is a sealed interface representing a piece of content within a
// [Message]. Use a type switch to inspect the underlying type.
type Content interface {
	// Type returns the discriminator for this content item.
	Type() ContentType

	sealed()
}

// Contents is an ordered list of message parts.
type Contents []Content

type base struct{}

func (base) sealed() {}

// TextContent holds plain text.
type TextContent struct {
	base
	Text string
}

func (c *TextContent) Type() ContentType { return ContentTypeText }

// FunctionCallContent is a function call requested by the model. The host
// pauses on it and waits for the caller to resume with the result.
type FunctionCallContent struct {
	base
	CallID    string
	Name      string
	Arguments string // JSON-encoded arguments
}

func (c *FunctionCallContent) Type() ContentType { return ContentTypeFunctionCall }

// ParsedArguments decodes Arguments as JSON. Empty arguments decode to an
// empty object; arguments that are not valid JSON are returned verbatim.
func (c *FunctionCallContent) ParsedArguments() any {
	if c.Arguments == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(c.Arguments), &v); err != nil {
		return c.Arguments
	}
	return v
}

// FunctionResultContent is the result of a function call, supplied by the
// caller when it resumes a paused invocation.
type FunctionResultContent struct {
	base
	CallID string
	Name   string
	Result any
}

func (c *FunctionResultContent) Type() ContentType { return ContentTypeFunctionResult }

// ApprovalRequestContent asks the caller to approve a function call before
// it runs.
type ApprovalRequestContent struct {
	base
	CallID    string
	Name      string
	Arguments string
}

func (c *ApprovalRequestContent) Type() ContentType { return ContentTypeApprovalRequest }
