// Copyright (c) Microsoft. All rights reserved.

// Package agentframework hosts conversational agents behind the invoke
// protocol of package agentserver.
//
// # Quick Start
//
// Build a [ChatAgent] on top of a [ChatClient] (for example from the openai
// package) and serve it:
//
//	client := openai.New(os.Getenv("OPENAI_API_KEY"), openai.WithModel("gpt-4o"))
//
//	agent := agentframework.NewChatAgent(client,
//	    agentframework.WithName("assistant"),
//	    agentframework.WithInstructions("You are helpful."),
//	)
//
//	srv, err := agentframework.NewServer(agent)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(srv.Run(ctx))
//
// Any type implementing [Agent] can be hosted; [AgentFunc] adapts a plain
// function.
//
// # Requests and results
//
// [ToMessages] turns the input items of a request into messages. Strings
// are user messages; objects keep their user, assistant or system role and
// any other role becomes user. A resume payload is appended as a
// [FunctionResultContent] in a final user message.
//
// [ToResult] turns the agent's answer into a result. Text parts are joined
// with a single space. The first [FunctionCallContent] or
// [ApprovalRequestContent] pauses the invocation with an interrupt and
// status requires_input.
//
// # Function declarations
//
// Functions declared with [WithFunctions] are offered to the model but never
// run by the agent. When the model calls one, the caller gets an interrupt,
// runs the function itself, and resumes with the result:
//
//	type WeatherArgs struct {
//	    Location string `json:"location" jsonschema:"description=City name,required"`
//	}
//
//	weather := agentframework.DeclareFunction[WeatherArgs]("get_weather", "Get current weather")
//
// # Sessions
//
// [WithSessionHistory] keeps each session's messages in a [SessionHistory]
// and replays them ahead of the next request carrying the same session id.
//
// # Middleware
//
// [AgentMiddleware] wraps whole runs and [ChatMiddleware] wraps model calls.
// [LoggingMiddleware] and [TracingMiddleware] are provided.
package agentframework
