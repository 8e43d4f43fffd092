// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// Log attribute keys for request-scoped fields.
const (
	LogKeyRequestID    = "azure.ai.agentserver.x-request-id"
	LogKeySessionID    = "azure.ai.agentserver.session_id"
	LogKeyStreaming    = "azure.ai.agentserver.streaming"
	LogKeyInvocationID = "azure.ai.agentserver.invocation_id"
)

// RequestInfo holds the correlation fields of one invocation. It travels in
// the request context and is added to every log record by [ContextHandler].
type RequestInfo struct {
	RequestID    string
	InvocationID string
	SessionID    string
	Streaming    bool

	// streamingSet distinguishes "false" from "not parsed yet".
	streamingSet bool
}

type requestInfoKey struct{}

// WithRequestInfo returns ctx carrying info.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the correlation fields stored in ctx.
func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}

// withRequestBody adds the fields known only after the body is parsed.
func withRequestBody(ctx context.Context, req *Request) context.Context {
	info, _ := RequestInfoFrom(ctx)
	info.SessionID = req.SessionID
	info.Streaming = req.Stream
	info.streamingSet = true
	return WithRequestInfo(ctx, info)
}

func (info RequestInfo) attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 4)
	if info.RequestID != "" {
		attrs = append(attrs, slog.String(LogKeyRequestID, info.RequestID))
	}
	if info.InvocationID != "" {
		attrs = append(attrs, slog.String(LogKeyInvocationID, info.InvocationID))
	}
	if info.streamingSet {
		attrs = append(attrs,
			slog.String(LogKeySessionID, info.SessionID),
			slog.String(LogKeyStreaming, strconv.FormatBool(info.Streaming)),
		)
	}
	return attrs
}

// ContextHandler decorates records with the [RequestInfo] found in the
// record's context.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if info, ok := RequestInfoFrom(ctx); ok {
		r.AddAttrs(info.attrs()...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// NewLogger builds the server logger: a JSON (or text) handler at level,
// wrapped in a [ContextHandler].
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(NewContextHandler(h))
}

// ParseLevel maps debug, info, warn and error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}
