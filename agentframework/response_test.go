// Copyright (c) Microsoft. All rights reserved.

package agentframework_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	af "github.com/Azure/azure-ai-agentserver-go/agentframework"
)

func TestChatResponseFromUpdates(t *testing.T) {
	call := &af.FunctionCallContent{CallID: "c1", Name: "f"}
	resp := af.ChatResponseFromUpdates([]af.ChatResponseUpdate{
		{Role: af.RoleAssistant, ResponseID: "r1", ModelID: "m", Contents: af.Contents{&af.TextContent{Text: "a"}}},
		{Contents: af.Contents{&af.TextContent{Text: "b"}}},
		{Contents: af.Contents{call}},
		{Contents: af.Contents{&af.TextContent{Text: "c"}}, FinishReason: af.FinishReasonToolCalls},
		{Usage: af.UsageDetails{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}},
	})

	assert.Equal(t, "r1", resp.ResponseID)
	assert.Equal(t, "m", resp.ModelID)
	assert.Equal(t, af.FinishReasonToolCalls, resp.FinishReason)
	assert.Equal(t, 3, resp.Usage.TotalTokens)

	require.Len(t, resp.Messages, 1)
	msg := resp.Messages[0]
	assert.Equal(t, af.RoleAssistant, msg.Role)
	require.Len(t, msg.Contents, 3)
	assert.Equal(t, "ab", msg.Contents[0].(*af.TextContent).Text)
	assert.Same(t, call, msg.Contents[1])
	assert.Equal(t, "c", msg.Contents[2].(*af.TextContent).Text)
}

func TestAgentResponseFromUpdates_Empty(t *testing.T) {
	resp := af.AgentResponseFromUpdates(nil)
	assert.Empty(t, resp.Messages)
	assert.Empty(t, resp.Text())
	assert.Nil(t, resp.PendingCall())
}

func TestAgentResponseFromUpdates_RoleFromFirstUpdateThatHasOne(t *testing.T) {
	resp := af.AgentResponseFromUpdates([]af.AgentResponseUpdate{
		{Contents: af.Contents{&af.TextContent{Text: "x"}}},
		{Role: af.RoleSystem, AgentID: "a", Contents: af.Contents{&af.TextContent{Text: "y"}}},
	})
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, af.RoleSystem, resp.Messages[0].Role)
	assert.Equal(t, "a", resp.AgentID)
	assert.Equal(t, "xy", resp.Text())
}

func TestAgentResponse_PendingCall(t *testing.T) {
	approval := &af.ApprovalRequestContent{CallID: "a1", Name: "rm"}
	resp := &af.AgentResponse{Messages: []af.Message{
		af.NewAssistantMessage("thinking"),
		{Role: af.RoleAssistant, Contents: af.Contents{approval, &af.FunctionCallContent{CallID: "c2"}}},
	}}
	assert.Same(t, approval, resp.PendingCall())
	assert.Equal(t, []string{"thinking"}, resp.Texts())
}

func TestUsageDetails_Add(t *testing.T) {
	u := af.UsageDetails{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}.Add(af.UsageDetails{InputTokens: 10, TotalTokens: 10})
	assert.Equal(t, af.UsageDetails{InputTokens: 11, OutputTokens: 2, TotalTokens: 13}, u)
}
