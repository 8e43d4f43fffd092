// Copyright (c) Microsoft. All rights reserved.

// Command minimal-invoke hosts a bare invoke function with no agent
// framework. It answers with a single result, or with a token stream when
// the caller sets "stream": true.
//
// Usage:
//
//	go run .
//	curl -s localhost:8080/invoke -d '{"input":["hello there"]}'
//	curl -sN localhost:8080/invoke -d '{"input":["hello there"],"stream":true}'
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Azure/azure-ai-agentserver-go/agentserver"
)

func init() {
	agentserver.Register("shout", shout)
}

func shout(ctx context.Context, req *agentserver.Request) (agentserver.Output, error) {
	var words []string
	for _, item := range req.Input {
		words = append(words, strings.Fields(strings.ToUpper(item.Text()))...)
	}
	if len(words) == 0 {
		words = []string{"NOTHING", "TO", "SAY"}
	}
	reply := strings.Join(words, " ")

	if !req.Stream {
		return agentserver.ResultOutput(agentserver.NewCompletedResult(reply)), nil
	}

	return agentserver.StreamOutput(agentserver.NewEventStream(ctx, func(ctx context.Context, ch chan<- agentserver.Event) error {
		for i, w := range words {
			if i > 0 {
				w = " " + w
			}
			if err := agentserver.Emit(ctx, ch, agentserver.DeltaEvent(w)); err != nil {
				return err
			}
			time.Sleep(50 * time.Millisecond)
		}
		return agentserver.Emit(ctx, ch, agentserver.CompletedEvent(agentserver.NewCompletedResult(reply)))
	})), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := agentserver.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	shutdown, err := agentserver.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer shutdown(context.Background())

	srv, err := agentserver.NewFromRegistry(cfg)
	if err != nil {
		log.Fatalf("server: %v", err)
	}
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
