// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// Server exposes one invoke function over HTTP.
//
// Routes:
//
//	POST /invoke      run the invoke function, answer with JSON or SSE
//	GET  /liveness    {"status":"ok"}
//	GET  /readiness   {"status":"ok"}
type Server struct {
	cfg        Config
	logger     *slog.Logger
	invoker    *Invoker
	dispatcher *Dispatcher
	handler    http.Handler

	mu   sync.Mutex
	addr net.Addr
}

// New creates a server around fn, which must be one of [Func], [ContextFunc],
// [GeneratorFunc] or [ProducerFunc] (or an unnamed function of the same
// signature). A nil fn is accepted; /invoke then answers 500 no_invoke_fn.
func New(fn any, opts ...Option) (*Server, error) {
	sc := &serverConfig{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(sc)
	}
	if err := sc.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAgentServer, err)
	}

	logger := sc.logger
	switch {
	case logger == nil:
		logger = NewLogger(os.Stderr, sc.cfg.LogLevel, sc.cfg.LogFormat)
	default:
		if _, ok := logger.Handler().(*ContextHandler); !ok {
			logger = slog.New(NewContextHandler(logger.Handler()))
		}
	}

	inv, err := NewInvoker(fn, NewWorkerPool(sc.cfg.WorkerPoolSize))
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        sc.cfg,
		logger:     logger,
		invoker:    inv,
		dispatcher: NewDispatcher(logger, sc.cfg.DebugErrors),
	}
	s.handler = s.routes(sc.middleware)

	if inv.Kind() == KindNone {
		logger.Warn("no invoke function configured")
	} else {
		logger.Info("invoke function loaded", "kind", inv.Kind().String())
	}
	return s, nil
}

func (s *Server) routes(extra []Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(requestContext)
	r.Use(accessLog(s.logger))
	r.Use(recoverer(s.logger))
	for _, mw := range extra {
		r.Use(mw)
	}

	r.Get("/liveness", s.handleHealth)
	r.Get("/readiness", s.handleHealth)
	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(rateLimit(s.cfg.RateLimit))
		}
		r.Post("/invoke", s.handleInvoke)
	})

	if s.cfg.OTLPEndpoint != "" {
		return traceHTTP(s.cfg.ServiceName)(r)
	}
	return r
}

// Handler returns the server's HTTP handler, for use with httptest or an
// existing http.Server.
func (s *Server) Handler() http.Handler { return s.handler }

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger { return s.logger }

// Kind returns the calling convention of the configured invoke function.
func (s *Server) Kind() Kind { return s.invoker.Kind() }

// Addr returns the listening address once [Server.Run] has bound it, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully within Config.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is [Server.Run] on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("agent server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info("agent server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSONBytes(w, http.StatusOK, healthBody)
}

var healthBody = []byte(`{"status":"ok"}`)

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.invoker.Kind() == KindNone {
		s.fail(ctx, w, ErrNoInvokeFunc)
		return
	}

	req, err := decodeRequest(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		s.logger.WarnContext(ctx, "rejecting invoke request", "error", err)
		s.fail(ctx, w, err)
		return
	}

	ctx = withRequestBody(ctx, req)
	annotateSpan(ctx, req, s.invoker.Kind())
	s.logger.DebugContext(ctx, "invoking", "kind", s.invoker.Kind().String(), "items", len(req.Input))

	out, err := s.invoker.Invoke(ctx, req)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	if err := s.dispatcher.Dispatch(ctx, w, out, req.Stream); err != nil {
		_ = out.Close()
		s.fail(ctx, w, err)
	}
}

// fail writes the error response for a failure that happened before any
// response byte was written.
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, err error) {
	he := toHTTPError(err, s.cfg.DebugErrors)
	if he.Status >= http.StatusInternalServerError {
		attrs := []any{"error", err, "code", he.Code}
		var pe *PanicError
		if errors.As(err, &pe) {
			attrs = append(attrs, "stack", string(pe.Stack))
		}
		s.logger.ErrorContext(ctx, "invocation failed", attrs...)
	}
	writeError(w, he)
}

// decodeRequest reads an invoke body. Every failure is an [*HTTPError] with a
// 4xx status.
func decodeRequest(body io.Reader) (*Request, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, &HTTPError{
				Status:  http.StatusRequestEntityTooLarge,
				Code:    CodeBodyTooLarge,
				Message: fmt.Sprintf("request body exceeds %d bytes", mbe.Limit),
				Err:     ErrInvalidRequest,
			}
		}
		return nil, invalidJSON(err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, invalidJSON(errors.New("request body must be a JSON object"))
	}
	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, invalidJSON(err)
	}
	req.Raw = json.RawMessage(trimmed)
	return &req, nil
}

func invalidJSON(err error) *HTTPError {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidJSON,
		Message: err.Error(),
		Err:     fmt.Errorf("%w: %w", ErrInvalidRequest, err),
	}
}

// writeError writes the {"status":"failed","error":{...}} body.
func writeError(w http.ResponseWriter, he *HTTPError) {
	body, err := json.Marshal(errorBody{
		Status: StatusFailed,
		Error:  errorDetail{Code: he.Code, Message: he.Message},
	})
	if err != nil {
		body = []byte(`{"status":"failed","error":{"code":"invocation_error","message":"Internal error"}}`)
	}
	writeJSONBytes(w, he.Status, body)
}
