// Package toast collects user-facing notifications.
package toast

import (
	"log/slog"
	"sync"
	"time"

	"github.com/user/agentinbox/internal/types"
)

const (
	VariantDefault     = ""
	VariantDestructive = "destructive"
)

const defaultCapacity = 20

// Error builds a destructive toast.
func Error(title, description string) types.Toast {
	return types.Toast{Title: title, Description: description, Variant: VariantDestructive}
}

// Info builds a default toast.
func Info(title, description string) types.Toast {
	return types.Toast{Title: title, Description: description}
}

// Collector keeps the most recent toasts until they are drained.
type Collector struct {
	mu       sync.Mutex
	toasts   []types.Toast
	capacity int
	now      func() time.Time
}

// NewCollector creates a Collector holding at most capacity toasts.
func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Collector{capacity: capacity, now: time.Now}
}

// Notify records t, dropping the oldest toast when full.
func (c *Collector) Notify(t types.Toast) {
	if t.At.IsZero() {
		t.At = c.now()
	}
	if t.Variant == VariantDestructive {
		slog.Warn("toast", "title", t.Title, "description", t.Description)
	} else {
		slog.Debug("toast", "title", t.Title, "description", t.Description)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.toasts = append(c.toasts, t)
	if len(c.toasts) > c.capacity {
		c.toasts = c.toasts[len(c.toasts)-c.capacity:]
	}
}

// Drain returns pending toasts oldest first and clears them.
func (c *Collector) Drain() []types.Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.toasts
	c.toasts = nil
	return out
}

// Len reports the number of pending toasts.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.toasts)
}

var _ types.Notifier = (*Collector)(nil)
