// Copyright (c) Microsoft. All rights reserved.

package agentframework_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	af "github.com/Azure/azure-ai-agentserver-go/agentframework"
	"github.com/Azure/azure-ai-agentserver-go/agentserver"
)

func decodeRequest(t *testing.T, body string) *agentserver.Request {
	t.Helper()
	var req agentserver.Request
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return &req
}

func TestToMessages_InputForms(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		roles []af.Role
		texts []string
	}{
		{"plain string", `{"input": ["How are you?"]}`, []af.Role{af.RoleUser}, []string{"How are you?"}},
		{"multiple strings", `{"input": ["first", "second"]}`, []af.Role{af.RoleUser, af.RoleUser}, []string{"first", "second"}},
		{"text type", `{"input": [{"type": "text", "text": "typed"}]}`, []af.Role{af.RoleUser}, []string{"typed"}},
		{"content string", `{"input": [{"role": "user", "content": "simple"}]}`, []af.Role{af.RoleUser}, []string{"simple"}},
		{
			"content list",
			`{"input": [{"role": "user", "content": [{"type": "input_text", "text": "part1"}, {"type": "input_text", "text": "part2"}]}]}`,
			[]af.Role{af.RoleUser}, []string{"part1 part2"},
		},
		{
			"role mapping",
			`{"input": [{"role": "system", "content": "s"}, {"role": "assistant", "content": "a"}, {"role": "critic", "content": "c"}]}`,
			[]af.Role{af.RoleSystem, af.RoleAssistant, af.RoleUser}, []string{"s", "a", "c"},
		},
		{"empty text skipped", `{"input": ["", {"role": "user", "content": ""}, "kept"]}`, []af.Role{af.RoleUser}, []string{"kept"}},
		{
			"untyped item falls back to text",
			`{"input": [{"role": "assistant", "text": "bare"}, {"content": "", "text": "also"}]}`,
			[]af.Role{af.RoleAssistant, af.RoleUser}, []string{"bare", "also"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msgs := af.ToMessages(decodeRequest(t, tc.body))
			require.Len(t, msgs, len(tc.texts))
			for i, m := range msgs {
				assert.Equal(t, tc.roles[i], m.Role)
				assert.Equal(t, tc.texts[i], m.Text())
			}
		})
	}
}

func TestToMessages_Empty(t *testing.T) {
	assert.Empty(t, af.ToMessages(decodeRequest(t, `{"input": []}`)))
	assert.Nil(t, af.ToMessages(nil))
}

func TestToMessages_ResumeAppended(t *testing.T) {
	req := decodeRequest(t, `{
		"input": ["What's the weather?"],
		"resume": {"function_name": "get_weather", "call_id": "call_1", "result": {"temp": 21}}
	}`)
	msgs := af.ToMessages(req)
	require.Len(t, msgs, 2)
	assert.Equal(t, "What's the weather?", msgs[0].Text())

	last := msgs[1]
	assert.Equal(t, af.RoleUser, last.Role)
	fr, ok := last.Contents[0].(*af.FunctionResultContent)
	require.True(t, ok)
	assert.Equal(t, "get_weather", fr.Name)
	assert.Equal(t, "call_1", fr.CallID)
	assert.Equal(t, map[string]any{"temp": float64(21)}, fr.Result)
}

func TestToMessages_ResumeDefaults(t *testing.T) {
	msgs := af.ToMessages(decodeRequest(t, `{"input": [], "resume": {}}`))
	require.Len(t, msgs, 1)
	fr := msgs[0].Contents[0].(*af.FunctionResultContent)
	assert.Equal(t, "unknown", fr.Name)
	assert.Equal(t, "", fr.CallID)
	assert.Equal(t, "", fr.Result)
}

func response(contents ...af.Content) *af.AgentResponse {
	return &af.AgentResponse{Messages: []af.Message{{Role: af.RoleAssistant, Contents: contents}}}
}

func TestToResult_Completed(t *testing.T) {
	res := af.ToResult(response(&af.TextContent{Text: "Hello!"}))
	require.NoError(t, res.Validate())
	assert.Equal(t, agentserver.StatusCompleted, res.Status)
	assert.Equal(t, "Hello!", res.MessageText())
	assert.Nil(t, res.Interrupt)
}

func TestToResult_TextsJoinedWithSpace(t *testing.T) {
	resp := &af.AgentResponse{Messages: []af.Message{
		{Role: af.RoleAssistant, Contents: af.Contents{&af.TextContent{Text: "one"}, &af.TextContent{Text: ""}}},
		{Role: af.RoleAssistant, Contents: af.Contents{&af.TextContent{Text: "two"}}},
	}}
	assert.Equal(t, "one two", af.ToResult(resp).MessageText())
}

func TestToResult_Empty(t *testing.T) {
	for _, resp := range []*af.AgentResponse{nil, {}, response()} {
		res := af.ToResult(resp)
		require.NoError(t, res.Validate())
		assert.Equal(t, agentserver.StatusCompleted, res.Status)
		assert.Nil(t, res.Message)

		b, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status": "completed", "message": null, "annotations": []}`, string(b))
	}
}

func TestToResult_FunctionCallInterrupts(t *testing.T) {
	res := af.ToResult(response(
		&af.TextContent{Text: "Let me check."},
		&af.FunctionCallContent{CallID: "call_1", Name: "search", Arguments: `{"q": "go"}`},
	))
	require.NoError(t, res.Validate())
	assert.Equal(t, agentserver.StatusRequiresInput, res.Status)
	assert.Equal(t, "Let me check.", res.MessageText())
	require.NotNil(t, res.Interrupt)
	assert.Equal(t, "call_1", res.Interrupt.ID)
	assert.Equal(t, "search", res.Interrupt.FunctionName)
	assert.Equal(t, "Function call: search", res.Interrupt.Message)
	assert.Equal(t, map[string]any{"q": "go"}, res.Interrupt.Arguments)
}

func TestToResult_FirstInterruptWins(t *testing.T) {
	res := af.ToResult(response(
		&af.FunctionCallContent{CallID: "1", Name: "first_fn"},
		&af.FunctionCallContent{CallID: "2", Name: "second_fn"},
	))
	assert.Equal(t, "first_fn", res.Interrupt.FunctionName)
	assert.Equal(t, map[string]any{}, res.Interrupt.Arguments)
}

func TestToResult_ApprovalRequest(t *testing.T) {
	res := af.ToResult(response(&af.ApprovalRequestContent{CallID: "a1", Name: "delete_file", Arguments: `{"path": "/tmp/x"}`}))
	assert.Equal(t, agentserver.StatusRequiresInput, res.Status)
	assert.Equal(t, "a1", res.Interrupt.ID)
	assert.Equal(t, "delete_file", res.Interrupt.FunctionName)
}

// streamingAgent answers every run with the same updates.
type streamingAgent struct {
	updates []af.AgentResponseUpdate

	mu   sync.Mutex
	seen [][]af.Message
}

func (a *streamingAgent) Run(_ context.Context, msgs []af.Message) (*af.AgentResponse, error) {
	a.record(msgs)
	return af.AgentResponseFromUpdates(a.updates), nil
}

func (a *streamingAgent) RunStream(ctx context.Context, msgs []af.Message) (*af.ResponseStream[af.AgentResponseUpdate], error) {
	a.record(msgs)
	return af.StreamOf(ctx, a.updates...), nil
}

func (a *streamingAgent) record(msgs []af.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, msgs)
}

func (a *streamingAgent) calls() [][]af.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seen
}

func textUpdate(s string) af.AgentResponseUpdate {
	return af.AgentResponseUpdate{Role: af.RoleAssistant, Contents: af.Contents{&af.TextContent{Text: s}}}
}

func serve(t *testing.T, fn agentserver.ContextFunc) *httptest.Server {
	t.Helper()
	srv, err := agentserver.New(fn, agentserver.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func invoke(t *testing.T, ts *httptest.Server, body string) (*http.Response, string) {
	t.Helper()
	resp, err := ts.Client().Post(ts.URL+"/invoke", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

// sseEvents returns the event names and data payloads of an SSE body.
func sseEvents(body string) (names, data []string) {
	for block := range strings.SplitSeq(body, "\n\n") {
		for line := range strings.SplitSeq(block, "\n") {
			if name, ok := strings.CutPrefix(line, "event: "); ok {
				names = append(names, name)
			}
			if d, ok := strings.CutPrefix(line, "data: "); ok {
				data = append(data, d)
			}
		}
	}
	return names, data
}

func TestInvokeHandler_Result(t *testing.T) {
	agent := &streamingAgent{updates: []af.AgentResponseUpdate{textUpdate("hi "), textUpdate("back")}}
	ts := serve(t, af.NewInvokeHandler(agent))

	resp, body := invoke(t, ts, `{"input": ["hi"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"status": "completed", "message": "hi back", "annotations": []}`, body)
}

func TestInvokeHandler_Stream(t *testing.T) {
	agent := &streamingAgent{updates: []af.AgentResponseUpdate{textUpdate("Hel"), textUpdate("lo")}}
	ts := serve(t, af.NewInvokeHandler(agent))

	resp, body := invoke(t, ts, `{"input": ["hi"], "stream": true}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	names, data := sseEvents(body)
	assert.Equal(t, []string{"message.delta", "message.delta", "invocation.completed"}, names)
	require.Len(t, data, 4)
	assert.JSONEq(t, `{"type": "message.delta", "delta": "Hel"}`, data[0])
	assert.JSONEq(t, `{"type": "invocation.completed", "status": "completed", "message": "Hello", "annotations": []}`, data[2])
	assert.Equal(t, "[DONE]", data[3])
}

func TestInvokeHandler_StreamInterrupt(t *testing.T) {
	agent := &streamingAgent{updates: []af.AgentResponseUpdate{
		textUpdate("Checking."),
		{Contents: af.Contents{&af.FunctionCallContent{CallID: "c1", Name: "lookup", Arguments: `{"id": 7}`}}},
	}}
	ts := serve(t, af.NewInvokeHandler(agent))

	_, body := invoke(t, ts, `{"input": ["hi"], "stream": true}`)
	names, data := sseEvents(body)
	assert.Equal(t, []string{"message.delta", "interrupt", "invocation.completed"}, names)

	var completed map[string]any
	require.NoError(t, json.Unmarshal([]byte(data[2]), &completed))
	assert.Equal(t, "requires_input", completed["status"])
	assert.Equal(t, "lookup", completed["interrupt"].(map[string]any)["function_name"])
}

func TestInvokeHandler_NonStreamingAgentServesStreamRequest(t *testing.T) {
	agent := af.AgentFunc(func(_ context.Context, msgs []af.Message) (*af.AgentResponse, error) {
		return &af.AgentResponse{Messages: []af.Message{af.NewAssistantMessage("once")}}, nil
	})
	ts := serve(t, af.NewInvokeHandler(agent))

	resp, body := invoke(t, ts, `{"input": ["hi"], "stream": true}`)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	names, _ := sseEvents(body)
	assert.Equal(t, []string{"invocation.completed"}, names)
	assert.Contains(t, body, `"message":"once"`)
}

func TestInvokeHandler_AgentError(t *testing.T) {
	agent := af.AgentFunc(func(context.Context, []af.Message) (*af.AgentResponse, error) {
		return nil, &af.ServiceError{StatusCode: 401, Message: "bad key", Err: af.ErrAuth}
	})
	ts := serve(t, af.NewInvokeHandler(agent))

	resp, body := invoke(t, ts, `{"input": ["hi"]}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, `"invocation_error"`)
	assert.NotContains(t, body, "bad key")
}

func TestInvokeHandler_SessionHistory(t *testing.T) {
	agent := &streamingAgent{updates: []af.AgentResponseUpdate{textUpdate("ok")}}
	history := af.NewSessionHistory(nil)
	ts := serve(t, af.NewInvokeHandler(agent, af.WithSessionHistory(history)))

	invoke(t, ts, `{"input": ["first"], "session_id": "s1"}`)
	invoke(t, ts, `{"input": ["other"], "session_id": "s2"}`)
	invoke(t, ts, `{"input": ["second"], "session_id": "s1", "stream": true}`)

	calls := agent.calls()
	require.Len(t, calls, 3)
	third := calls[2]
	require.Len(t, third, 3)
	assert.Equal(t, "first", third[0].Text())
	assert.Equal(t, af.RoleAssistant, third[1].Role)
	assert.Equal(t, "ok", third[1].Text())
	assert.Equal(t, "second", third[2].Text())

	stored, err := history.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestInvokeHandler_ResumeAfterInterrupt(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []af.Message
	)
	agent := af.AgentFunc(func(_ context.Context, msgs []af.Message) (*af.AgentResponse, error) {
		mu.Lock()
		seen = msgs
		mu.Unlock()
		last := msgs[len(msgs)-1]
		if fr, ok := last.Contents[0].(*af.FunctionResultContent); ok {
			return &af.AgentResponse{Messages: []af.Message{af.NewAssistantMessage("It is " + fr.Result.(string))}}, nil
		}
		return response(&af.FunctionCallContent{CallID: "c1", Name: "get_time"}), nil
	})
	ts := serve(t, af.NewInvokeHandler(agent, af.WithSessionHistory(nil)))

	_, body := invoke(t, ts, `{"input": ["what time is it?"], "session_id": "s"}`)
	assert.JSONEq(t, `{
		"status": "requires_input",
		"message": null,
		"annotations": [],
		"interrupt": {"id": "c1", "message": "Function call: get_time", "function_name": "get_time", "arguments": {}}
	}`, body)

	_, body = invoke(t, ts, `{"input": [], "session_id": "s", "resume": {"function_name": "get_time", "call_id": "c1", "result": "noon"}}`)
	assert.JSONEq(t, `{"status": "completed", "message": "It is noon", "annotations": []}`, body)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, "what time is it?", seen[0].Text())
	_, isCall := seen[1].Contents[0].(*af.FunctionCallContent)
	assert.True(t, isCall)
}

func TestInvokeHandler_RunMiddleware(t *testing.T) {
	var sessions []string
	mw := af.AgentMiddleware(func(next af.AgentHandler) af.AgentHandler {
		return func(ctx context.Context, req *af.AgentRequest) (*af.AgentResponse, error) {
			sessions = append(sessions, req.SessionID)
			return next(ctx, req)
		}
	})
	agent := af.AgentFunc(func(context.Context, []af.Message) (*af.AgentResponse, error) {
		return &af.AgentResponse{}, nil
	})
	fn := af.NewInvokeHandler(agent, af.WithRunMiddleware(mw))

	out, err := fn(context.Background(), &agentserver.Request{SessionID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, agentserver.ShapeResult, out.Shape())
	assert.Equal(t, []string{"abc"}, sessions)
}

func TestNewServer(t *testing.T) {
	agent := &streamingAgent{updates: []af.AgentResponseUpdate{textUpdate("served")}}
	srv, err := af.NewServer(agent, agentserver.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	assert.Equal(t, agentserver.KindAsync, srv.Kind())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	_, body := invoke(t, ts, `{"input": ["hi"]}`)
	assert.Contains(t, body, "served")
}
