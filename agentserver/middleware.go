// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
)

// Middleware wraps an [http.Handler] to add cross-cutting behavior. The first
// middleware given to [WithMiddleware] is the outermost wrapper.
type Middleware func(next http.Handler) http.Handler

// requestHeaderID is read for log correlation and never echoed back.
const requestHeaderID = "X-Request-Id"

// requestContext stores the correlation fields of each request in its
// context. Every request gets a fresh invocation id.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithRequestInfo(r.Context(), RequestInfo{
			RequestID:    r.Header.Get(requestHeaderID),
			InvocationID: uuid.NewString(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog logs one line per request once the handler returns.
func accessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if r.URL.Path == "/liveness" || r.URL.Path == "/readiness" {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// recoverer turns a panic escaping the router into a structured 500. If the
// response was already committed the connection is left as is.
func recoverer(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.ErrorContext(r.Context(), "panic serving request",
					"panic", v, "stack", string(debug.Stack()))
				if ww, ok := w.(middleware.WrapResponseWriter); ok && ww.Status() != 0 {
					return
				}
				writeError(w, &HTTPError{
					Status:  http.StatusInternalServerError,
					Code:    CodeInvocationError,
					Message: genericErrorMessage,
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimit caps /invoke at perSecond requests across all callers.
func rateLimit(perSecond int) Middleware {
	return httprate.Limit(perSecond, time.Second,
		httprate.WithKeyFuncs(func(*http.Request) (string, error) { return "*", nil }),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "1")
			writeError(w, &HTTPError{
				Status:  http.StatusTooManyRequests,
				Code:    CodeRateLimited,
				Message: "Too many requests",
			})
		}),
	)
}
