// Package errbus carries structured permission-denial events from deep
// data-access code to whatever top-level listeners care to present them.
// Subscriptions fail asynchronously inside their delivery callbacks, where
// returning an error has no observer; publishing on a shared bus gives those
// failures a single, consistent exit path.
package errbus

import (
	"fmt"
	"sync"
)

// Operation is the kind of access that was denied.
type Operation string

const (
	OpGet    Operation = "get"
	OpList   Operation = "list"
	OpWrite  Operation = "write"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// PermissionError describes a single denied operation with enough context to
// render an actionable diagnostic.
type PermissionError struct {
	Path                string
	Operation           Operation
	RequestResourceData map[string]interface{}

	// Err is the underlying denial returned by the store, if any.
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s %q", e.Operation, e.Path)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// Bus is a process-wide publish/subscribe channel with a single event type.
// Publish is synchronous and fire-and-forget; zero subscribers is a no-op.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]func(*PermissionError)
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(*PermissionError))}
}

// Subscribe attaches fn to the bus and returns its detach function.
// Any number of independent subscribers may be attached.
func (b *Bus) Subscribe(fn func(*PermissionError)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers evt to every current subscriber. Delivery order across
// subscribers is unspecified.
func (b *Bus) Publish(evt *PermissionError) {
	b.mu.RLock()
	fns := make([]func(*PermissionError), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(evt)
	}
}
