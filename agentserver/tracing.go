// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys set on the /invoke span.
const (
	attrSessionID = attribute.Key("azure.ai.agentserver.session_id")
	attrStreaming = attribute.Key("azure.ai.agentserver.streaming")
	attrKind      = attribute.Key("azure.ai.agentserver.invoke_kind")
)

// InitTracing installs a global tracer provider exporting over OTLP/HTTP to
// endpoint. The returned function flushes and stops the exporter. With an
// empty endpoint, tracing stays on the default no-op provider and shutdown
// does nothing.
func InitTracing(ctx context.Context, endpoint, serviceName string) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// traceHTTP wraps next with otelhttp. Health probes are not traced.
func traceHTTP(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/liveness" && r.URL.Path != "/readiness"
			}),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}

// annotateSpan records the parsed request on the active span, if any.
func annotateSpan(ctx context.Context, req *Request, kind Kind) {
	trace.SpanFromContext(ctx).SetAttributes(
		attrSessionID.String(req.SessionID),
		attrStreaming.Bool(req.Stream),
		attrKind.String(kind.String()),
	)
}
