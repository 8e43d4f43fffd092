// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"fmt"
	"sort"
	"sync"
)

var registry = struct {
	sync.RWMutex
	fns map[string]any
}{fns: make(map[string]any)}

// Register makes fn available under name so a deployment can pick it with
// AGENT_INVOKE_NAME. It is meant to be called from init functions and panics
// on a duplicate name or an unsupported function.
func Register(name string, fn any) {
	if _, err := NewInvoker(fn, nil); err != nil {
		panic(fmt.Sprintf("agentserver: Register %q: %v", name, err))
	}
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.fns[name]; dup {
		panic(fmt.Sprintf("agentserver: Register called twice for %q", name))
	}
	registry.fns[name] = fn
}

// Lookup returns the function registered under name.
func Lookup(name string) (any, error) {
	registry.RLock()
	defer registry.RUnlock()
	fn, ok := registry.fns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return fn, nil
}

// Registered returns the registered names, sorted.
func Registered() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.fns))
	for name := range registry.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewFromRegistry creates a server around the function named by
// cfg.InvokeName. With exactly one registered function and no name
// configured, that function is used.
func NewFromRegistry(cfg Config, opts ...Option) (*Server, error) {
	name := cfg.InvokeName
	if name == "" {
		names := Registered()
		if len(names) != 1 {
			return nil, fmt.Errorf("%w: %s not set and %d functions registered", ErrNotRegistered, EnvInvokeName, len(names))
		}
		name = names[0]
	}
	fn, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return New(fn, append([]Option{WithConfig(cfg)}, opts...)...)
}
