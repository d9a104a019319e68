// Package commands exposes backend operations to the frontend by name, the way
// the desktop host's invoke channel addresses them.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Handler runs a command with its JSON-encoded arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// ErrNotFound is returned by Invoke for an unregistered command.
var ErrNotFound = errors.New("command not found")

// ArgsError reports arguments that could not be decoded or are missing.
type ArgsError struct {
	Command string
	Detail  string
}

func (e *ArgsError) Error() string {
	return fmt.Sprintf("invalid args for command %q: %s", e.Command, e.Detail)
}

// Registry maps command names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. Registering the same name twice is an error.
func (r *Registry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Names lists registered commands in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named command.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return h(ctx, args)
}

// decodeArgs unmarshals args into v. Empty args decode as an empty object.
func decodeArgs(command string, args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &ArgsError{Command: command, Detail: err.Error()}
	}
	return nil
}

func missing(command, field string) error {
	return &ArgsError{Command: command, Detail: fmt.Sprintf("missing required key %s", field)}
}
