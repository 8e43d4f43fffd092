// Copyright (c) Microsoft. All rights reserved.

package agentserver

import "log/slog"

// serverConfig holds resolved settings for a [Server].
type serverConfig struct {
	cfg        Config
	logger     *slog.Logger
	middleware []Middleware
}

// Option configures a [Server].
type Option func(*serverConfig)

// WithConfig replaces the whole configuration. Options given after it still
// apply on top.
func WithConfig(cfg Config) Option {
	return func(c *serverConfig) { c.cfg = cfg }
}

// WithLogger sets the logger. Records pass through a [ContextHandler] unless
// the logger already uses one.
func WithLogger(logger *slog.Logger) Option {
	return func(c *serverConfig) { c.logger = logger }
}

// WithDebugErrors exposes raw error text in error responses and events.
func WithDebugErrors(on bool) Option {
	return func(c *serverConfig) { c.cfg.DebugErrors = on }
}

// WithWorkerPoolSize bounds the goroutines running synchronous invoke code.
func WithWorkerPoolSize(n int) Option {
	return func(c *serverConfig) { c.cfg.WorkerPoolSize = n }
}

// WithMaxBodyBytes caps the request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(c *serverConfig) { c.cfg.MaxBodyBytes = n }
}

// WithAddr sets the listen host and port.
func WithAddr(host string, port int) Option {
	return func(c *serverConfig) {
		c.cfg.Host = host
		c.cfg.Port = port
	}
}

// WithMiddleware adds HTTP middleware around every route, outermost first.
func WithMiddleware(mws ...Middleware) Option {
	return func(c *serverConfig) { c.middleware = append(c.middleware, mws...) }
}
