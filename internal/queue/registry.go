package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// HandlerFunc is a type-erased work function: raw JSON payload in, raw JSON
// result out. Typed definitions registered through RegisterWorkKind are
// converted to this form by closing over unmarshal/marshal.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Registry maps work-kind tags to handler functions. Safe for concurrent use.
// Work functions are opaque business logic supplied by collaborators; the
// queue only dispatches to them.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty work-kind registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a raw handler for the given work kind, replacing any
// previous registration.
func (r *Registry) Register(kind string, handler HandlerFunc) error {
	if kind == "" {
		return fmt.Errorf("work kind cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("work kind %q requires a handler", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = handler
	return nil
}

// RegisterWorkKind registers a typed work function for kind. The payload is
// JSON-unmarshaled into T before the handler runs and the result R is
// JSON-marshaled after, so dispatch stays type-checked per kind.
//
// Package-level because Go does not allow generic methods on non-generic
// receivers.
func RegisterWorkKind[T, R any](r *Registry, kind string, handler func(ctx context.Context, payload T) (R, error)) error {
	return r.Register(kind, func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return nil, fmt.Errorf("unmarshal payload for work kind %q: %w", kind, err)
			}
		}

		result, err := handler(ctx, t)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal result for work kind %q: %w", kind, err)
		}
		return raw, nil
	})
}

// Get returns the handler for the given work kind.
func (r *Registry) Get(kind string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns all registered work-kind tags.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}

// progressKey carries the progress reporter through the work function's
// context.
type progressKey struct{}

// ProgressFunc reports execution progress in percent (0-100).
type ProgressFunc func(pct int)

// WithProgress returns a context carrying a progress reporter. Used by the
// worker before invoking a handler.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ReportProgress reports progress from inside a work function. A no-op when
// the context carries no reporter.
func ReportProgress(ctx context.Context, pct int) {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok {
		fn(pct)
	}
}
