// Copyright (c) Microsoft. All rights reserved.

// Command chat-agent hosts a model-backed agent with a declared function.
// When the model wants the weather it pauses with an interrupt; the caller
// looks it up and resumes the run with the result.
//
// It works with both direct OpenAI and Azure AI Foundry endpoints.
//
// Usage with OpenAI:
//
//	export OPENAI_API_KEY=sk-...
//	go run .
//
// Usage with Azure AI Foundry:
//
//	export AZURE_FOUNDRY_ENDPOINT=https://<project>.services.ai.azure.com/openai/deployments/<deployment>
//	export AZURE_FOUNDRY_KEY=<your-key>   # optional, Entra ID is used when unset
//	export AZURE_FOUNDRY_MODEL=gpt-4o     # optional, defaults to gpt-4o
//	go run .
//
// Then:
//
//	curl -s localhost:8080/invoke -d '{"input":["Weather in Oslo?"],"session_id":"s1"}'
//	curl -s localhost:8080/invoke -d '{"input":[],"session_id":"s1",
//	    "resume":{"function_name":"get_weather","call_id":"<id>","result":{"temperature":4,"condition":"snow"}}}'
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/joho/godotenv"

	af "github.com/Azure/azure-ai-agentserver-go/agentframework"
	"github.com/Azure/azure-ai-agentserver-go/agentserver"
	"github.com/Azure/azure-ai-agentserver-go/openai"
)

type weatherArgs struct {
	Location string `json:"location" jsonschema:"description=City name or location,required"`
	Unit     string `json:"unit"     jsonschema:"description=Temperature unit,enum=celsius|fahrenheit"`
}

func main() {
	// Load .env file if present (ignored if missing).
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := agentserver.ConfigFromEnv(os.LookupEnv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := agentserver.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	shutdown, err := agentserver.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer shutdown(context.Background())

	agent := af.NewChatAgent(newChatClient(logger),
		af.WithName("weather-assistant"),
		af.WithInstructions("You are a helpful assistant. When asked about the weather, call get_weather. Keep responses concise."),
		af.WithFunctions(af.DeclareFunction[weatherArgs]("get_weather", "Get the current weather for a location.")),
		af.WithAgentMiddleware(
			af.TracingMiddleware("weather-assistant"),
			af.LoggingMiddleware(logger),
		),
	)

	srv, err := af.NewServer(agent, agentserver.WithConfig(cfg), agentserver.WithLogger(logger))
	if err != nil {
		log.Fatalf("server: %v", err)
	}
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// newChatClient creates an OpenAI-compatible client, choosing between Azure AI
// Foundry and direct OpenAI based on which environment variables are set.
func newChatClient(logger *slog.Logger) *openai.Client {
	if endpoint := os.Getenv("AZURE_FOUNDRY_ENDPOINT"); endpoint != "" {
		model := os.Getenv("AZURE_FOUNDRY_MODEL")
		if model == "" {
			model = "gpt-4o"
		}

		if key := os.Getenv("AZURE_FOUNDRY_KEY"); key != "" {
			logger.Info("using Azure AI Foundry with API key", "endpoint", endpoint)
			return openai.New(key,
				openai.WithBaseURL(endpoint),
				openai.WithModel(model),
				openai.WithHeaders(map[string]string{"api-key": key}),
			)
		}

		logger.Info("using Azure AI Foundry with DefaultAzureCredential", "endpoint", endpoint)
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			log.Fatalf("azure credential: %v", err)
		}
		return openai.New("",
			openai.WithBaseURL(endpoint),
			openai.WithModel(model),
			openai.WithAzureCredential(cred),
		)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("Set OPENAI_API_KEY or AZURE_FOUNDRY_ENDPOINT")
	}
	return openai.New(apiKey, openai.WithModel("gpt-4o"))
}
