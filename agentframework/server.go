// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "github.com/Azure/azure-ai-agentserver-go/agentserver"

// NewServer hosts agent on an [agentserver.Server] with per-session history
// enabled. Use [NewInvokeHandler] with [agentserver.New] for other setups.
func NewServer(agent Agent, opts ...agentserver.Option) (*agentserver.Server, error) {
	return agentserver.New(NewInvokeHandler(agent, WithSessionHistory(nil)), opts...)
}
