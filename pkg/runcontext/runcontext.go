// Package runcontext carries the opaque user-supplied state and the
// mutable usage/metadata that flow through every callback of a single run.
package runcontext

import (
	"sync"

	"github.com/digitallysavvy/agentrun/pkg/usage"
)

// Wrapper is the Context holder (spec Component B). The user-supplied
// Value is treated as opaque read-only data by the engine; only Usage and
// the metadata map are mutated by the engine, and every mutation is
// serialised through mu so a Wrapper is safe to share across the
// goroutines of a single run's tool dispatcher (spec §3 Ownership: "owned
// by exactly one Runner; concurrent access is not supported and is not
// needed" — the mutex exists to make "one Runner, many tool goroutines"
// safe, not to support cross-run sharing).
type Wrapper struct {
	Value any

	mu       sync.Mutex
	usage    usage.Usage
	metadata map[string]any
}

// New wraps an opaque user value in a fresh Wrapper with zeroed usage.
func New(value any) *Wrapper {
	return &Wrapper{Value: value, metadata: make(map[string]any)}
}

// UpdateUsage adds incoming to the accumulated usage and returns the new
// total.
func (w *Wrapper) UpdateUsage(incoming usage.Usage) usage.Usage {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.usage = w.usage.Add(incoming)
	return w.usage
}

// Usage returns a snapshot of the accumulated usage.
func (w *Wrapper) Usage() usage.Usage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.usage
}

// SetMetadata stores a key/value pair visible to subsequent callbacks.
func (w *Wrapper) SetMetadata(key string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metadata[key] = value
}

// GetMetadata retrieves a previously stored value.
func (w *Wrapper) GetMetadata(key string) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.metadata[key]
	return v, ok
}
