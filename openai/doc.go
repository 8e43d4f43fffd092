// Copyright (c) Microsoft. All rights reserved.

// Package openai provides an [agentframework.ChatClient] backed by the
// OpenAI Chat Completions API, including Azure OpenAI deployments.
//
// Wrap the client in an agent and host it:
//
//	client := openai.New(os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o"),
//	)
//	agent := agentframework.NewChatAgent(client,
//	    agentframework.WithInstructions("You are a helpful assistant."),
//	)
//	srv, err := agentframework.NewServer(agent)
//
// Declared functions are sent as tools. When the model calls one, the call
// surfaces as a [agentframework.FunctionCallContent] and the hosting layer
// turns it into an interrupt. The caller's resume arrives as a
// [agentframework.FunctionResultContent], which the client sends back as a
// tool message. In streaming mode, tool call fragments are assembled and
// delivered whole once the model finishes the turn.
//
// # Configuration
//
//   - [WithModel]: set the default model
//   - [WithInstructions]: system prompt for every conversation
//   - [WithBaseURL]: override the API endpoint (e.g., Azure OpenAI)
//   - [WithAzureCredential]: authenticate with Microsoft Entra ID tokens
//   - [WithTokenScope]: override the token scope requested from the credential
//   - [WithOrganization]: set the OpenAI organization header
//   - [WithHTTPClient]: provide a custom http.Client
//   - [WithHeaders]: add custom headers to every request
//   - [WithChatMiddleware]: wrap non-streaming calls
//
// For Azure OpenAI with key authentication, pass the key through
// WithHeaders(map[string]string{"api-key": key}); the bearer header is then
// omitted.
//
// # Errors
//
// Failures are returned as [*agentframework.ServiceError] wrapping one of the
// agentframework sentinels, such as [agentframework.ErrAuth],
// [agentframework.ErrRateLimited] or [agentframework.ErrContentFilter].
package openai
