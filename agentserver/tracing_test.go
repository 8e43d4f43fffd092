// Copyright (c) Microsoft. All rights reserved.

package agentserver_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure/azure-ai-agentserver-go/agentserver"
)

func TestInitTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := agentserver.InitTracing(context.Background(), "", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestServer_TracedHandlerServes(t *testing.T) {
	cfg := agentserver.DefaultConfig()
	cfg.OTLPEndpoint = "http://127.0.0.1:4318"
	ts := newTestServer(t, hiBack, agentserver.WithConfig(cfg))

	resp, body := post(t, ts, `{"input": ["hi"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "hi back")
}
