package realtime

import (
	"sync"

	"github.com/recedu/reconline/core/errbus"
)

// DocResult is the three-state result of a document binding. Loading is true
// only before the first event of the current subscription; Data is nil
// exactly when the document does not exist or nothing is bound yet.
type DocResult struct {
	Data    Record
	Loading bool
	Err     error
}

// QueryResult mirrors DocResult for collection subscriptions. Data is an
// empty, non-nil slice for a query that matches zero records, so consumers
// can distinguish "still loading" from "confirmed empty".
type QueryResult struct {
	Data    []Record
	Loading bool
	Err     error
}

// DocBinding maintains a live-updating DocResult for at most one document
// subscription at a time. Rebinding to a structurally equal ref keeps the
// existing subscription open.
type DocBinding struct {
	mu      sync.Mutex
	store   Store
	bus     *errbus.Bus
	ref     *DocRef
	unsub   Unsubscribe
	gen     int
	cur     DocResult
	updates chan DocResult
}

func NewDocBinding(store Store, bus *errbus.Bus) *DocBinding {
	return &DocBinding{store: store, bus: bus}
}

// Result returns the current result.
func (b *DocBinding) Result() DocResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur
}

// Updates returns a channel carrying result transitions. Delivery is
// coalescing: a slow consumer observes the latest state, not every
// intermediate one.
func (b *DocBinding) Updates() <-chan DocResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updates == nil {
		b.updates = make(chan DocResult, 1)
	}
	return b.updates
}

// Bind points the binding at ref. A nil ref means "not ready to subscribe
// yet" and settles to {nil, false, nil}. Binding the same path again is a
// no-op; a new identity tears the old subscription down and opens a new one.
func (b *DocBinding) Bind(ref *DocRef) {
	b.mu.Lock()

	if ref != nil && b.ref != nil && ref.Equal(*b.ref) {
		b.mu.Unlock()
		return
	}

	old := b.unsub
	b.unsub = nil
	b.gen++
	gen := b.gen

	if ref == nil {
		b.ref = nil
		b.setLocked(DocResult{})
		b.mu.Unlock()
		if old != nil {
			old()
		}
		return
	}

	r := *ref
	b.ref = &r
	b.setLocked(DocResult{Loading: true})
	b.mu.Unlock()

	if old != nil {
		old()
	}

	unsub := b.store.WatchDoc(r, func(evt DocEvent) {
		b.onEvent(gen, r, evt)
	})

	b.mu.Lock()
	if b.gen == gen {
		b.unsub = unsub
		b.mu.Unlock()
	} else {
		// rebound while subscribing
		b.mu.Unlock()
		unsub()
	}
}

// Close tears down the active subscription, if any.
func (b *DocBinding) Close() {
	b.mu.Lock()
	unsub := b.unsub
	b.unsub = nil
	b.ref = nil
	b.gen++
	b.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (b *DocBinding) onEvent(gen int, ref DocRef, evt DocEvent) {
	var publish *errbus.PermissionError

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	if evt.Err != nil {
		// keep previously seen good data
		b.setLocked(DocResult{Data: b.cur.Data, Err: evt.Err})
		publish = &errbus.PermissionError{Path: ref.Path, Operation: errbus.OpGet, Err: evt.Err}
	} else {
		b.setLocked(DocResult{Data: evt.Snap.Record()})
	}
	b.mu.Unlock()

	if publish != nil && b.bus != nil {
		b.bus.Publish(publish)
	}
}

func (b *DocBinding) setLocked(res DocResult) {
	b.cur = res
	if b.updates != nil {
		select {
		case b.updates <- res:
		default:
			select {
			case <-b.updates:
			default:
			}
			b.updates <- res
		}
	}
}

// QueryBinding maintains a live-updating QueryResult for at most one query
// subscription at a time. Query identity is checked with Query.Equal, so two
// independently constructed queries with identical filters and ordering are
// treated as the same subscription.
type QueryBinding struct {
	mu      sync.Mutex
	store   Store
	bus     *errbus.Bus
	query   *Query
	unsub   Unsubscribe
	gen     int
	cur     QueryResult
	updates chan QueryResult
}

func NewQueryBinding(store Store, bus *errbus.Bus) *QueryBinding {
	return &QueryBinding{store: store, bus: bus}
}

func (b *QueryBinding) Result() QueryResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur
}

func (b *QueryBinding) Updates() <-chan QueryResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updates == nil {
		b.updates = make(chan QueryResult, 1)
	}
	return b.updates
}

func (b *QueryBinding) Bind(q *Query) {
	b.mu.Lock()

	if q != nil && b.query != nil && q.Equal(*b.query) {
		b.mu.Unlock()
		return
	}

	old := b.unsub
	b.unsub = nil
	b.gen++
	gen := b.gen

	if q == nil {
		b.query = nil
		b.setLocked(QueryResult{})
		b.mu.Unlock()
		if old != nil {
			old()
		}
		return
	}

	query := *q
	b.query = &query
	b.setLocked(QueryResult{Loading: true})
	b.mu.Unlock()

	if old != nil {
		old()
	}

	unsub := b.store.WatchQuery(query, func(evt QueryEvent) {
		b.onEvent(gen, query, evt)
	})

	b.mu.Lock()
	if b.gen == gen {
		b.unsub = unsub
		b.mu.Unlock()
	} else {
		b.mu.Unlock()
		unsub()
	}
}

func (b *QueryBinding) Close() {
	b.mu.Lock()
	unsub := b.unsub
	b.unsub = nil
	b.query = nil
	b.gen++
	b.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (b *QueryBinding) onEvent(gen int, q Query, evt QueryEvent) {
	var publish *errbus.PermissionError

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	if evt.Err != nil {
		b.setLocked(QueryResult{Data: b.cur.Data, Err: evt.Err})
		publish = &errbus.PermissionError{Path: q.Path(), Operation: errbus.OpList, Err: evt.Err}
	} else {
		b.setLocked(QueryResult{Data: evt.Records()})
	}
	b.mu.Unlock()

	if publish != nil && b.bus != nil {
		b.bus.Publish(publish)
	}
}

func (b *QueryBinding) setLocked(res QueryResult) {
	b.cur = res
	if b.updates != nil {
		select {
		case b.updates <- res:
		default:
			select {
			case <-b.updates:
			default:
			}
			b.updates <- res
		}
	}
}
