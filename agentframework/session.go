// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"fmt"
	"sync"
)

// SessionHistory keeps one [MessageStore] per session id. Requests without
// a session id share no history.
type SessionHistory struct {
	mu       sync.Mutex
	stores   map[string]MessageStore
	newStore func() MessageStore
}

// NewSessionHistory creates an empty SessionHistory. newStore builds the
// store for a session seen for the first time; nil means [NewInMemoryStore].
func NewSessionHistory(newStore func() MessageStore) *SessionHistory {
	if newStore == nil {
		newStore = func() MessageStore { return NewInMemoryStore() }
	}
	return &SessionHistory{
		stores:   make(map[string]MessageStore),
		newStore: newStore,
	}
}

// Store returns the store for sessionID, creating it on first use.
func (h *SessionHistory) Store(sessionID string) MessageStore {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.stores[sessionID]
	if !ok {
		s = h.newStore()
		h.stores[sessionID] = s
	}
	return s
}

// Load returns the messages recorded for sessionID.
func (h *SessionHistory) Load(ctx context.Context, sessionID string) ([]Message, error) {
	if sessionID == "" {
		return nil, nil
	}
	msgs, err := h.Store(sessionID).ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load %q: %w", ErrSession, sessionID, err)
	}
	return msgs, nil
}

// Append records msgs for sessionID.
func (h *SessionHistory) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if sessionID == "" || len(msgs) == 0 {
		return nil
	}
	if err := h.Store(sessionID).AddMessages(ctx, msgs); err != nil {
		return fmt.Errorf("%w: save %q: %w", ErrSession, sessionID, err)
	}
	return nil
}

// Forget drops the history of sessionID.
func (h *SessionHistory) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.stores, sessionID)
}

// Len reports how many sessions have history.
func (h *SessionHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stores)
}
