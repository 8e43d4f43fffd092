// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Status is the terminal state reported by a [Result].
type Status string

const (
	StatusCompleted     Status = "completed"
	StatusRequiresInput Status = "requires_input"
	StatusFailed        Status = "failed"
)

// Event types understood by clients of the invoke protocol.
const (
	EventTypeDelta     = "message.delta"
	EventTypeInterrupt = "interrupt"
	EventTypeError     = "error"
	EventTypeCompleted = "invocation.completed"
)

// Request is the decoded body of a POST /invoke call.
type Request struct {
	Input     []InputItem `json:"input"`
	Stream    bool        `json:"stream"`
	SessionID string      `json:"session_id,omitempty"`
	Resume    *Resume     `json:"resume,omitempty"`

	// Raw is the request body exactly as received.
	Raw json.RawMessage `json:"-"`
}

// Resume carries the result of a function call that an earlier invocation
// paused on. Adapters append it to the conversation.
type Resume struct {
	FunctionName string `json:"function_name,omitempty"`
	CallID       string `json:"call_id,omitempty"`
	Result       any    `json:"result,omitempty"`
}

// ContentPart is one element of a list-valued input content.
type ContentPart struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// InputItem is one entry of [Request.Input]. On the wire it is either a bare
// string or an object; IsString reports which.
type InputItem struct {
	Role  string `json:"role,omitempty"`
	Type  string `json:"type,omitempty"`
	Value string `json:"text,omitempty"`

	// Content is the content string, or the concatenated parts when
	// Parts is set.
	Content string        `json:"-"`
	Parts   []ContentPart `json:"-"`

	// Extra holds object keys not modelled above.
	Extra map[string]json.RawMessage `json:"-"`

	isString bool
}

// StringItem returns a bare-string input item.
func StringItem(s string) InputItem {
	return InputItem{Value: s, isString: true}
}

// IsString reports whether the item was a bare JSON string.
func (it InputItem) IsString() bool { return it.isString }

// Text extracts the item's text using the invoke protocol's precedence: the
// bare string, then text of a "text" item, then content (parts joined by a
// single space), then the text field.
func (it InputItem) Text() string {
	switch {
	case it.isString:
		return it.Value
	case it.Type == "text":
		return it.Value
	case it.Parts != nil:
		texts := make([]string, 0, len(it.Parts))
		for _, p := range it.Parts {
			texts = append(texts, p.Text)
		}
		return strings.Join(texts, " ")
	case it.Content != "":
		return it.Content
	}
	return it.Value
}

func (it *InputItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*it = StringItem(s)
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("input item must be a string or an object: %w", err)
	}

	var out InputItem
	for key, raw := range fields {
		var err error
		switch key {
		case "role":
			err = json.Unmarshal(raw, &out.Role)
		case "type":
			err = json.Unmarshal(raw, &out.Type)
		case "text":
			err = json.Unmarshal(raw, &out.Value)
		case "content":
			err = out.decodeContent(raw)
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]json.RawMessage)
			}
			out.Extra[key] = raw
		}
		if err != nil {
			return fmt.Errorf("input item field %q: %w", key, err)
		}
	}
	*it = out
	return nil
}

func (it *InputItem) decodeContent(raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return nil
	case raw[0] == '"':
		return json.Unmarshal(raw, &it.Content)
	case raw[0] == '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			return err
		}
		it.Parts = make([]ContentPart, 0, len(parts))
		for _, p := range parts {
			var part ContentPart
			// Non-object parts carry no text.
			if json.Unmarshal(p, &part) == nil {
				it.Parts = append(it.Parts, part)
			}
		}
		return nil
	}
	return fmt.Errorf("content must be a string or a list of parts")
}

func (it InputItem) MarshalJSON() ([]byte, error) {
	if it.isString {
		return json.Marshal(it.Value)
	}
	fields := make(map[string]any, len(it.Extra)+4)
	for k, v := range it.Extra {
		fields[k] = v
	}
	if it.Role != "" {
		fields["role"] = it.Role
	}
	if it.Type != "" {
		fields["type"] = it.Type
	}
	if it.Value != "" {
		fields["text"] = it.Value
	}
	switch {
	case it.Parts != nil:
		fields["content"] = it.Parts
	case it.Content != "":
		fields["content"] = it.Content
	}
	return json.Marshal(fields)
}

// Interrupt describes the pending function call a [Result] is waiting on.
type Interrupt struct {
	ID           string `json:"id"`
	Message      string `json:"message,omitempty"`
	FunctionName string `json:"function_name"`
	Arguments    any    `json:"arguments,omitempty"`
}

// Result is a complete, non-streamed invocation outcome.
type Result struct {
	Status      Status     `json:"status"`
	Message     *string    `json:"message"`
	Annotations []any      `json:"annotations"`
	Interrupt   *Interrupt `json:"interrupt,omitempty"`

	// Type is kept when the result is wrapped into an SSE frame.
	Type string `json:"type,omitempty"`

	// Extra keys are written after the known ones, sorted.
	Extra map[string]any `json:"-"`
}

// NewCompletedResult returns a completed result carrying message.
func NewCompletedResult(message string) *Result {
	return &Result{Status: StatusCompleted, Message: &message, Annotations: []any{}}
}

// NewInterruptResult returns a result paused on intr.
func NewInterruptResult(message *string, intr Interrupt) *Result {
	return &Result{
		Status:      StatusRequiresInput,
		Message:     message,
		Annotations: []any{},
		Interrupt:   &intr,
	}
}

// Validate checks that interrupt is present exactly when the status is
// requires_input.
func (r *Result) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil result", ErrInvalidResult)
	}
	if r.Status == "" {
		return fmt.Errorf("%w: missing status", ErrInvalidResult)
	}
	hasInterrupt := r.Interrupt != nil
	if hasInterrupt != (r.Status == StatusRequiresInput) {
		return fmt.Errorf("%w: interrupt present=%t with status %q", ErrInvalidResult, hasInterrupt, r.Status)
	}
	return nil
}

// MessageText returns the message or the empty string.
func (r *Result) MessageText() string {
	if r == nil || r.Message == nil {
		return ""
	}
	return *r.Message
}

func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	a := alias(r)
	if a.Annotations == nil {
		a.Annotations = []any{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return appendExtra(b, r.Extra)
}

// Event is one unit of a streamed invocation.
type Event struct {
	Type        string     `json:"type"`
	Delta       string     `json:"delta,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Code        string     `json:"code,omitempty"`
	Message     string     `json:"message,omitempty"`
	Annotations []any      `json:"annotations,omitempty"`
	Interrupt   *Interrupt `json:"interrupt,omitempty"`

	Extra map[string]any `json:"-"`
}

// DeltaEvent returns an incremental text event.
func DeltaEvent(delta string) Event {
	return Event{Type: EventTypeDelta, Delta: delta}
}

// ErrorEvent returns an in-band error event.
func ErrorEvent(code, message string) Event {
	return Event{Type: EventTypeError, Code: code, Message: message}
}

// InterruptEvent returns an event announcing a pending function call.
func InterruptEvent(intr Interrupt) Event {
	return Event{Type: EventTypeInterrupt, Interrupt: &intr}
}

// CompletedEvent converts a result into the terminal completion event.
func CompletedEvent(r *Result) Event {
	ev := Event{Type: EventTypeCompleted, Status: StatusCompleted, Annotations: []any{}}
	if r != nil {
		ev.Status = r.Status
		ev.Message = r.MessageText()
		ev.Interrupt = r.Interrupt
		if r.Annotations != nil {
			ev.Annotations = r.Annotations
		}
	}
	return ev
}

// eventWire is the encoded form of an [Event]. Pointer fields are written
// when set, even when they point at a zero value.
type eventWire struct {
	Type        string     `json:"type"`
	Delta       *string    `json:"delta,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Code        *string    `json:"code,omitempty"`
	Message     *string    `json:"message,omitempty"`
	Annotations *[]any     `json:"annotations,omitempty"`
	Interrupt   *Interrupt `json:"interrupt,omitempty"`
}

// MarshalJSON writes the fields each event type requires, empty or not:
// delta for deltas, code and message for errors, status, message and
// annotations for completions. Other fields are written only when set.
func (e Event) MarshalJSON() ([]byte, error) {
	w := eventWire{Type: e.Type, Status: e.Status, Interrupt: e.Interrupt}
	if e.Delta != "" || e.Type == EventTypeDelta {
		w.Delta = &e.Delta
	}
	if e.Code != "" || e.Type == EventTypeError {
		w.Code = &e.Code
	}
	if e.Message != "" || e.Type == EventTypeError || e.Type == EventTypeCompleted {
		w.Message = &e.Message
	}
	if e.Annotations != nil || e.Type == EventTypeCompleted {
		annotations := e.Annotations
		if annotations == nil {
			annotations = []any{}
		}
		w.Annotations = &annotations
	}
	if e.Type == EventTypeCompleted && w.Status == "" {
		w.Status = StatusCompleted
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return appendExtra(b, e.Extra)
}

// appendExtra splices extra keys into an encoded JSON object, skipping keys
// the object already has.
func appendExtra(obj []byte, extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return obj, nil
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(obj, &known); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if _, dup := known[k]; !dup {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return obj, nil
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(obj[:len(obj)-1])
	for i, k := range keys {
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(extra[k])
		if err != nil {
			return nil, fmt.Errorf("marshal extra %q: %w", k, err)
		}
		if i > 0 || len(known) > 0 {
			buf.WriteByte(',')
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
