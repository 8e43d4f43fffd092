// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrAgentServer is the base error for everything this package reports.
	ErrAgentServer = errors.New("agent server error")

	// ErrNoInvokeFunc is returned when a server has no invoke function.
	ErrNoInvokeFunc = fmt.Errorf("%w: no invoke function configured", ErrAgentServer)

	// ErrUnsupportedHandler is returned by [NewInvoker] for values that are
	// not one of the four invoke function kinds.
	ErrUnsupportedHandler = fmt.Errorf("%w: unsupported invoke function", ErrAgentServer)

	// ErrInvalidRequest indicates a malformed POST /invoke body.
	ErrInvalidRequest = fmt.Errorf("%w: invalid request", ErrAgentServer)

	// ErrInvalidResult indicates a result that breaks the interrupt invariant.
	ErrInvalidResult = fmt.Errorf("%w: invalid result", ErrAgentServer)

	// ErrInvocation wraps failures raised by the invoke function.
	ErrInvocation = fmt.Errorf("%w: invocation", ErrAgentServer)

	// ErrNotRegistered is returned by [Lookup] for unknown names.
	ErrNotRegistered = fmt.Errorf("%w: invoke function not registered", ErrAgentServer)
)

// Error codes written in the error body and in-band error events.
const (
	CodeInvalidJSON     = "invalid_json"
	CodeNoInvokeFunc    = "no_invoke_fn"
	CodeInvocationError = "invocation_error"
	CodeStreamError     = "stream_error"
	CodeBodyTooLarge    = "body_too_large"
	CodeRateLimited     = "rate_limited"
)

// genericErrorMessage replaces raw error text unless debug errors are on.
const genericErrorMessage = "Internal error"

// PanicError is returned when an invoke function panics. The panic is
// treated like any other error raised by user code.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("invoke function panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error { return ErrInvocation }

// HTTPError is an error with a fixed HTTP status and error code, rendered as
// the {"status":"failed","error":{...}} body.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %s: %v", e.Status, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// errorBody is the wire shape of a failed invocation.
type errorBody struct {
	Status Status      `json:"status"`
	Error  errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toHTTPError maps err to the response the client sees. Raw error text is
// only exposed when debug is true; decode errors and configuration errors
// carry fixed messages.
func toHTTPError(err error, debug bool) *HTTPError {
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}
	if errors.Is(err, ErrNoInvokeFunc) {
		return &HTTPError{Status: http.StatusInternalServerError, Code: CodeNoInvokeFunc, Message: "No invoke function configured", Err: err}
	}
	msg := genericErrorMessage
	if debug {
		msg = err.Error()
	}
	return &HTTPError{Status: http.StatusInternalServerError, Code: CodeInvocationError, Message: msg, Err: err}
}
