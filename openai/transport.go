// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	af "github.com/Azure/azure-ai-agentserver-go/agentframework"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultTokenScope = "https://cognitiveservices.azure.com/.default"

	// tokenRefreshMargin is how long before expiry a cached token is replaced.
	tokenRefreshMargin = 2 * time.Minute
)

// transport is an unexported interface for HTTP communication.
// The default implementation uses net/http; tests inject a mock.
type transport interface {
	do(ctx context.Context, method, path string, body any) (*http.Response, error)
}

// httpTransport is the default transport using net/http.
type httpTransport struct {
	client  *http.Client
	baseURL string
	apiKey  string
	org     string
	headers map[string]string
	tokens  *tokenCache
}

func newHTTPTransport(apiKey string, opts *clientConfig) *httpTransport {
	t := &httpTransport{
		client:  opts.httpClient,
		baseURL: opts.baseURL,
		apiKey:  apiKey,
		org:     opts.organization,
		headers: opts.headers,
	}
	if t.client == nil {
		t.client = http.DefaultClient
	}
	if t.baseURL == "" {
		t.baseURL = defaultBaseURL
	}
	if opts.azureCredential != nil {
		scope := opts.tokenScope
		if scope == "" {
			scope = defaultTokenScope
		}
		t.tokens = &tokenCache{cred: opts.azureCredential, scope: scope}
	}
	return t
}

func (t *httpTransport) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	switch {
	case t.tokens != nil:
		token, err := t.tokens.get(ctx)
		if err != nil {
			return nil, &af.ServiceError{StatusCode: http.StatusUnauthorized, Message: err.Error(), Err: af.ErrAuth}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case t.headers["api-key"] == "":
		// Azure "api-key" header replaces the bearer key.
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	if t.org != "" {
		req.Header.Set("OpenAI-Organization", t.org)
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %w", af.ErrService, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseErrorResponse(resp)
	}

	return resp, nil
}

// tokenCache hands out an Azure AD token, fetching a new one only when the
// cached token is close to expiry.
type tokenCache struct {
	cred  azcore.TokenCredential
	scope string

	mu    sync.Mutex
	token azcore.AccessToken
}

func (c *tokenCache) get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token.Token != "" && time.Until(c.token.ExpiresOn) > tokenRefreshMargin {
		return c.token.Token, nil
	}
	slog.DebugContext(ctx, "acquiring Azure AD token", "scope", c.scope)
	token, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{c.scope}})
	if err != nil {
		return "", fmt.Errorf("get azure token: %w", err)
	}
	c.token = token
	return token.Token, nil
}

// apiError is the error envelope returned by the API, both as an HTTP error
// body and inside a stream.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// parseErrorResponse reads an error response body and returns a typed error.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error apiError `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)

	msg := envelope.Error.Message
	if msg == "" {
		msg = string(body)
	}
	return newServiceError(resp.StatusCode, msg, envelope.Error.Code)
}

func newServiceError(status int, msg, code string) *af.ServiceError {
	svcErr := &af.ServiceError{
		StatusCode: status,
		Message:    msg,
		Code:       code,
	}
	switch {
	case code == "content_filter":
		svcErr.Err = af.ErrContentFilter
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		svcErr.Err = af.ErrAuth
	case status == http.StatusTooManyRequests:
		svcErr.Err = af.ErrRateLimited
	case status == http.StatusBadRequest:
		svcErr.Err = af.ErrInvalidRequest
	default:
		svcErr.Err = af.ErrService
	}
	return svcErr
}
