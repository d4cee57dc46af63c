package handler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"brain-orchestrator/internal/domain"
	"brain-orchestrator/internal/domain/model"
)

// Handler is the pluggable work contract. Implementations should not return
// an error for expected domain outcomes (empty result set, nothing to save);
// those are success=true with explanatory output, or success=false with a
// concrete error string. Returned errors and panics take the retry path but
// forfeit structured error reporting.
type Handler interface {
	Name() string
	Handle(ctx context.Context, payload map[string]interface{}) (*model.AgentResponse, error)
}

// Func adapts a plain function into a Handler.
type Func struct {
	HandlerName string
	Fn          func(ctx context.Context, payload map[string]interface{}) (*model.AgentResponse, error)
}

func (f Func) Name() string { return f.HandlerName }

func (f Func) Handle(ctx context.Context, payload map[string]interface{}) (*model.AgentResponse, error) {
	return f.Fn(ctx, payload)
}

// Registry maps handler names to capabilities. It is populated once at
// process start from an explicit table; Resolve never touches reflection.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Name()] = h
	}
	return r
}

// Register adds a handler; duplicate names are a wiring bug.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[h.Name()]; ok {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, h.Name())
	}
	r.handlers[h.Name()] = h
	return nil
}

// Resolve returns the capability for name, or domain.ErrHandlerNotFound.
func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrHandlerNotFound, name)
	}
	return h, nil
}

// Names lists registered handler names, sorted.
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
