// Package delivery routes notifications to the channels that subscribed to
// them.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Handler delivers a message to a target such as "telegram:12345".
type Handler func(target, message string) error

// Registry routes messages to the appropriate delivery handler based on
// target prefix (e.g. "telegram:", "log:") and keeps the list of targets
// that receive broadcasts.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	targets  []string
	retry    *RetryPolicy
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for targets starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// SetRetryPolicy makes Broadcast retry failed deliveries. A nil policy
// delivers once.
func (r *Registry) SetRetryPolicy(p *RetryPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retry = p
}

// Subscribe adds target to the broadcast list. Duplicates are ignored.
func (r *Registry) Subscribe(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.targets {
		if t == target {
			return
		}
	}
	r.targets = append(r.targets, target)
}

// Targets returns the subscribed targets.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.targets...)
}

// Deliver finds the handler matching the target prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Deliver(target, message string) error {
	r.mu.RLock()
	handler := r.lookup(target)
	r.mu.RUnlock()
	if handler == nil {
		return Permanent(fmt.Errorf("no delivery handler for target: %s", target))
	}
	return handler(target, message)
}

// Broadcast delivers message to every subscribed target. A failing target
// does not stop delivery to the others.
func (r *Registry) Broadcast(ctx context.Context, message string) error {
	r.mu.RLock()
	policy := r.retry
	r.mu.RUnlock()

	var errs []error
	for _, target := range r.Targets() {
		deliver := func() error { return r.Deliver(target, message) }
		var err error
		if policy != nil {
			err = policy.Do(ctx, deliver)
		} else {
			err = deliver()
		}
		if err != nil {
			slog.Warn("delivery failed", "target", target, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
		}
	}
	return errors.Join(errs...)
}

// lookup picks the longest matching prefix.
func (r *Registry) lookup(target string) Handler {
	var best string
	var handler Handler
	for prefix, h := range r.handlers {
		if strings.HasPrefix(target, prefix) && len(prefix) >= len(best) {
			best, handler = prefix, h
		}
	}
	return handler
}

// LogHandler writes messages to the structured log. It is registered for
// the "log:" prefix when no other channel is configured.
func LogHandler(target, message string) error {
	slog.Info("notification", "target", target, "message", message)
	return nil
}
