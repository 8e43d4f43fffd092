// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by [LoadConfig].
const (
	EnvHost            = "AGENT_HOST"
	EnvPort            = "DEFAULT_AD_PORT"
	EnvDebugErrors     = "AGENT_DEBUG_ERRORS"
	EnvWorkerPoolSize  = "AGENT_WORKER_POOL_SIZE"
	EnvLogLevel        = "AGENT_LOG_LEVEL"
	EnvLogFormat       = "AGENT_LOG_FORMAT"
	EnvMaxBodyBytes    = "AGENT_MAX_BODY_BYTES"
	EnvShutdownTimeout = "AGENT_SHUTDOWN_TIMEOUT"
	EnvRateLimit       = "AGENT_RATE_LIMIT"
	EnvInvokeName      = "AGENT_INVOKE_NAME"
	EnvOTLPEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvServiceName     = "OTEL_SERVICE_NAME"
)

// Defaults.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultMaxBodyBytes    = 10 << 20
	DefaultShutdownTimeout = 10 * time.Second
	DefaultServiceName     = "azure.ai.agentserver"

	defaultReadHeaderTimeout = 30 * time.Second
)

// Config holds the server settings.
type Config struct {
	Host string
	Port int

	// DebugErrors exposes raw error text to callers. Off by default.
	DebugErrors bool

	// WorkerPoolSize bounds the goroutines running synchronous user code.
	WorkerPoolSize int

	LogLevel  slog.Level
	LogFormat string

	// MaxBodyBytes caps the POST /invoke body.
	MaxBodyBytes int64

	ShutdownTimeout time.Duration

	// RateLimit is the number of /invoke requests allowed per second across
	// all clients. Zero disables limiting.
	RateLimit int

	// InvokeName selects a registered invoke function (see [Register]).
	InvokeName string

	// OTLPEndpoint enables trace export when set.
	OTLPEndpoint string
	ServiceName  string
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		WorkerPoolSize:  DefaultWorkerPoolSize(),
		LogLevel:        slog.LevelInfo,
		LogFormat:       "json",
		MaxBodyBytes:    DefaultMaxBodyBytes,
		ShutdownTimeout: DefaultShutdownTimeout,
		ServiceName:     DefaultServiceName,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadConfig loads a .env file if one exists and reads the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return ConfigFromEnv(os.LookupEnv)
}

// ConfigFromEnv reads the configuration through lookup, starting from
// [DefaultConfig].
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 0 {
				errs = append(errs, fmt.Errorf("%s: invalid value %q", key, v))
				return
			}
			*dst = n
		}
	}

	str(EnvHost, &cfg.Host)
	integer(EnvPort, &cfg.Port)
	integer(EnvWorkerPoolSize, &cfg.WorkerPoolSize)
	integer(EnvRateLimit, &cfg.RateLimit)
	str(EnvInvokeName, &cfg.InvokeName)
	str(EnvOTLPEndpoint, &cfg.OTLPEndpoint)
	str(EnvServiceName, &cfg.ServiceName)

	if v, ok := lookup(EnvDebugErrors); ok {
		// Only the literal "true" turns debug errors on.
		cfg.DebugErrors = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		l, err := ParseLevel(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvLogLevel, err))
		} else {
			cfg.LogLevel = l
		}
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		switch f := strings.ToLower(strings.TrimSpace(v)); f {
		case "json", "text":
			cfg.LogFormat = f
		default:
			errs = append(errs, fmt.Errorf("%s: unsupported format %q", EnvLogFormat, v))
		}
	}
	if v, ok := lookup(EnvMaxBodyBytes); ok && v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid value %q", EnvMaxBodyBytes, v))
		} else {
			cfg.MaxBodyBytes = n
		}
	}
	if v, ok := lookup(EnvShutdownTimeout); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", EnvShutdownTimeout, v))
		} else {
			cfg.ShutdownTimeout = d
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("worker pool size must be positive, got %d", c.WorkerPoolSize)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	return nil
}
