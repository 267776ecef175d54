package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/vivaflow/internal/platform/logger"
)

// Handler persists the result carried by a response envelope and advances
// the entity's status. A Handler that returns an error should already have
// moved the entity to ERROR; the dispatcher does so as a last resort.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// Middleware wraps every handler invocation.
type Middleware func(Handler) Handler

// Chain applies middleware so the first one listed runs outermost.
func Chain(h Handler, middleware ...Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// ErrHandlerPanic wraps a panic recovered from a handler.
var ErrHandlerPanic = errors.New("handler panicked")

// Recover turns a handler panic into an ErrHandlerPanic error.
func Recover() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, env Envelope) (err error) {
			defer func() {
				if p := recover(); p != nil {
					logger.FromContext(ctx).Error("handler panicked",
						"panic", p,
						"stack", string(debug.Stack()))
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
				}
			}()
			return next.Handle(ctx, env)
		})
	}
}

// Logging logs the outcome and duration of each handler invocation, and
// puts a logger carrying the task type and entity id into the context.
func Logging(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, env Envelope) error {
			log := base.With("task_type", string(env.Type), "entity_id", env.UUID)
			ctx = logger.WithLogger(ctx, log)

			start := time.Now()
			err := next.Handle(ctx, env)
			elapsed := time.Since(start)

			if err != nil {
				log.Error("handler failed", "error", err, "duration", elapsed.String())
				return err
			}
			log.Info("handler completed", "duration", elapsed.String())
			return nil
		})
	}
}

// ErrDuplicateHandler is returned when a type is registered twice.
var ErrDuplicateHandler = errors.New("handler already registered")

// Registry maps task types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Type]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Type]Handler)}
}

// Register adds h for t.
func (r *Registry) Register(t Type, h Handler) error {
	if h == nil {
		return fmt.Errorf("handler for %q cannot be nil", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[t]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, t)
	}
	r.handlers[t] = h
	return nil
}

// Lookup returns the handler for t.
func (r *Registry) Lookup(t Type) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns the registered types, sorted.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]Type, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
