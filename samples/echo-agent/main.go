// Copyright (c) Microsoft. All rights reserved.

// Command echo-agent hosts an agent that repeats the conversation back.
// It needs no model, which makes it handy for checking a deployment end to
// end. Messages containing "approve" pause the run with an approval
// request; resuming with any result completes it.
//
// Usage:
//
//	go run .
//	curl -s localhost:8080/invoke -d '{"input":["hi"],"session_id":"s1"}'
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	af "github.com/Azure/azure-ai-agentserver-go/agentframework"
	"github.com/Azure/azure-ai-agentserver-go/agentserver"
)

func echo(_ context.Context, messages []af.Message) (*af.AgentResponse, error) {
	if len(messages) == 0 {
		return &af.AgentResponse{Messages: []af.Message{af.NewAssistantMessage("Say something.")}}, nil
	}
	last := messages[len(messages)-1]
	for _, c := range last.Contents {
		if r, ok := c.(*af.FunctionResultContent); ok {
			return &af.AgentResponse{Messages: []af.Message{
				af.NewAssistantMessage(fmt.Sprintf("%s returned %v", r.Name, r.Result)),
			}}, nil
		}
	}

	text := last.Text()
	if strings.Contains(strings.ToLower(text), "approve") {
		args, err := json.Marshal(map[string]string{"text": text})
		if err != nil {
			return nil, err
		}
		return &af.AgentResponse{Messages: []af.Message{{
			Role: af.RoleAssistant,
			Contents: af.Contents{
				&af.TextContent{Text: "Waiting for approval."},
				&af.ApprovalRequestContent{CallID: "approval-1", Name: "approve", Arguments: string(args)},
			},
		}}}, nil
	}
	return &af.AgentResponse{Messages: []af.Message{
		af.NewAssistantMessage(fmt.Sprintf("Echo (%d messages so far): %s", len(messages), text)),
	}}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := agentserver.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := agentserver.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	handler := af.NewInvokeHandler(af.AgentFunc(echo),
		af.WithSessionHistory(nil),
		af.WithRunMiddleware(af.LoggingMiddleware(logger)),
		af.WithInvokeLogger(logger),
	)
	srv, err := agentserver.New(handler, agentserver.WithConfig(cfg), agentserver.WithLogger(logger))
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	logger.Info("echo agent ready", slog.String("addr", cfg.Addr()))
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
