// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// doneFrame terminates a successful stream.
var doneFrame = []byte("data: [DONE]\n\n")

// FormatFrame renders v as one SSE frame. The event line is written only
// when eventType is non-empty.
func FormatFrame(eventType string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal SSE payload: %w", err)
	}
	var b bytes.Buffer
	b.Grow(len(data) + len(eventType) + 16)
	if eventType != "" {
		b.WriteString("event: ")
		b.WriteString(eventType)
		b.WriteByte('\n')
	}
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")
	return b.Bytes(), nil
}

// sseWriter writes frames to a response and flushes after each one.
type sseWriter struct {
	w     io.Writer
	flush func()
}

// startSSE commits the event-stream headers with status 200.
func startSSE(w http.ResponseWriter) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &sseWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flush = f.Flush
	}
	return s
}

func (s *sseWriter) write(frame []byte) error {
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

func (s *sseWriter) event(ev Event) error {
	frame, err := FormatFrame(ev.Type, ev)
	if err != nil {
		return err
	}
	return s.write(frame)
}

func (s *sseWriter) done() error {
	return s.write(doneFrame)
}
