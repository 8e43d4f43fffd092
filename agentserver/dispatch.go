// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Mode is the response format the dispatcher settled on.
type Mode int

const (
	// ModeJSON writes the result as one JSON document.
	ModeJSON Mode = iota
	// ModeResultSSE wraps the result as a single invocation.completed frame.
	ModeResultSSE
	// ModeStreamSSE writes one frame per produced event.
	ModeStreamSSE
)

func (m Mode) String() string {
	switch m {
	case ModeResultSSE:
		return "result-sse"
	case ModeStreamSSE:
		return "stream-sse"
	}
	return "json"
}

// Plan reconciles what the invoke function produced with what the caller
// asked for. A stream is always served as SSE, even to a caller that asked
// for JSON: collapsing it would mean buffering an unbounded body and losing
// its incremental form.
func Plan(shape Shape, wantStream bool) Mode {
	switch {
	case shape == ShapeStream:
		return ModeStreamSSE
	case wantStream:
		return ModeResultSSE
	}
	return ModeJSON
}

// Dispatcher writes normalized invoke outputs as HTTP responses.
type Dispatcher struct {
	logger      *slog.Logger
	debugErrors bool
}

// NewDispatcher creates a Dispatcher. When debugErrors is false, in-band
// error events carry a generic message instead of the raw error text.
func NewDispatcher(logger *slog.Logger, debugErrors bool) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger, debugErrors: debugErrors}
}

// Dispatch writes out to w. A non-nil error means nothing has been written
// and the caller still owns the response status. Failures after the headers
// are committed are reported in-band and never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, w http.ResponseWriter, out Output, wantStream bool) error {
	mode := Plan(out.Shape(), wantStream)
	if mode == ModeStreamSSE && !wantStream {
		d.logger.DebugContext(ctx, "invoke function streamed for a JSON caller, serving SSE")
	}

	if mode == ModeStreamSSE {
		return d.writeStream(ctx, w, out.Stream())
	}

	res := out.Result()
	if res == nil {
		return fmt.Errorf("%w: invoke function returned no result", ErrInvalidResult)
	}
	// Inconsistent results are passed through and only logged.
	if err := res.Validate(); err != nil {
		d.logger.DebugContext(ctx, "invoke function returned an inconsistent result", "error", err)
	}
	if mode == ModeResultSSE {
		return d.writeResultSSE(w, res)
	}
	return d.writeResult(w, res)
}

func (d *Dispatcher) writeResult(w http.ResponseWriter, res *Result) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	writeJSONBytes(w, http.StatusOK, body)
	return nil
}

func (d *Dispatcher) writeResultSSE(w http.ResponseWriter, res *Result) error {
	wrapped := *res
	if wrapped.Type == "" {
		wrapped.Type = EventTypeCompleted
	}
	frame, err := FormatFrame(wrapped.Type, wrapped)
	if err != nil {
		return err
	}

	sse := startSSE(w)
	if err := sse.write(frame); err != nil {
		return nil
	}
	_ = sse.done()
	return nil
}

// writeStream pulls the first event before committing headers, so a failure
// while the stream starts up still becomes an ordinary error status.
func (d *Dispatcher) writeStream(ctx context.Context, w http.ResponseWriter, stream *EventStream) error {
	defer stream.Close()

	first, ok, err := stream.Next(ctx)
	if err != nil {
		return err
	}
	if !ok {
		_ = startSSE(w).done()
		return nil
	}
	frame, err := FormatFrame(first.Type, first)
	if err != nil {
		return err
	}

	sse := startSSE(w)
	if err := sse.write(frame); err != nil {
		d.logger.DebugContext(ctx, "client went away", "error", err)
		return nil
	}

	for {
		ev, ok, err := stream.Next(ctx)
		if err != nil {
			d.streamFailed(ctx, sse, err)
			return nil
		}
		if !ok {
			break
		}
		frame, err := FormatFrame(ev.Type, ev)
		if err != nil {
			d.streamFailed(ctx, sse, err)
			return nil
		}
		if err := sse.write(frame); err != nil {
			d.logger.DebugContext(ctx, "client went away", "error", err)
			return nil
		}
	}

	if err := sse.done(); err != nil {
		d.logger.DebugContext(ctx, "client went away", "error", err)
	}
	return nil
}

// streamFailed ends a committed stream with an error frame and no [DONE].
func (d *Dispatcher) streamFailed(ctx context.Context, sse *sseWriter, err error) {
	if ctx.Err() != nil {
		d.logger.DebugContext(ctx, "stream abandoned", "error", err)
		return
	}
	d.logger.ErrorContext(ctx, "streaming error", "error", err)

	msg := genericErrorMessage
	if d.debugErrors {
		msg = err.Error()
	}
	if werr := sse.event(ErrorEvent(CodeStreamError, msg)); werr != nil {
		d.logger.DebugContext(ctx, "client went away", "error", werr)
	}
}

// writeJSONBytes writes an already encoded JSON body.
func writeJSONBytes(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
