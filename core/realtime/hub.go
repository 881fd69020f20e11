package realtime

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/recedu/reconline/core/errbus"
)

// GuardFunc evaluates an access rule for a single operation on a path.
// A non-nil return denies the operation; the rule itself stays opaque to the
// caller beyond "denied".
type GuardFunc func(op errbus.Operation, path string) error

type docSub struct {
	id int
	fn func(DocEvent)
}

type querySub struct {
	id int
	q  Query
	fn func(QueryEvent)
}

// Hub is the in-process Store implementation: documents keyed by path, with
// per-document and per-collection subscriber registries. Writes notify
// subscribers synchronously, in write order.
type Hub struct {
	mu        sync.Mutex
	docs      map[string]map[string]interface{}
	seq       map[string]int // insertion order, the store's native ordering
	nextSeq   int
	docSubs   map[string][]docSub
	querySubs map[string][]querySub // keyed by collection
	nextID    int
	guard     GuardFunc
}

func NewHub() *Hub {
	return &Hub{
		docs:      make(map[string]map[string]interface{}),
		seq:       make(map[string]int),
		docSubs:   make(map[string][]docSub),
		querySubs: make(map[string][]querySub),
	}
}

// SetGuard installs the access rule applied to every subsequent operation.
func (h *Hub) SetGuard(g GuardFunc) {
	h.mu.Lock()
	h.guard = g
	h.mu.Unlock()
}

func (h *Hub) checkLocked(op errbus.Operation, path string) error {
	if h.guard == nil {
		return nil
	}
	return h.guard(op, path)
}

// Set writes the document at path, replacing its fields, and notifies every
// affected subscriber.
func (h *Hub) Set(path string, fields map[string]interface{}) error {
	h.mu.Lock()
	op := errbus.OpWrite
	if _, ok := h.docs[path]; ok {
		op = errbus.OpUpdate
	}
	if err := h.checkLocked(op, path); err != nil {
		h.mu.Unlock()
		return &errbus.PermissionError{Path: path, Operation: op, RequestResourceData: fields, Err: err}
	}

	cp := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	h.docs[path] = cp
	if _, ok := h.seq[path]; !ok {
		h.nextSeq++
		h.seq[path] = h.nextSeq
	}
	h.notifyLocked(path)
	h.mu.Unlock()
	return nil
}

// Delete removes the document at path, if present, and notifies subscribers.
func (h *Hub) Delete(path string) error {
	h.mu.Lock()
	if err := h.checkLocked(errbus.OpDelete, path); err != nil {
		h.mu.Unlock()
		return &errbus.PermissionError{Path: path, Operation: errbus.OpDelete, Err: err}
	}
	delete(h.docs, path)
	delete(h.seq, path)
	h.notifyLocked(path)
	h.mu.Unlock()
	return nil
}

// Get reads the document at path once, outside of any subscription.
func (h *Hub) Get(path string) (Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fields, ok := h.docs[path]
	if !ok {
		return nil, false
	}
	return DocSnapshot{Ref: DocRef{Path: path}, Exists: true, Fields: fields}.Record(), true
}

// WatchDoc opens a live subscription on a single document. The callback
// receives the current state immediately and again after every write. A
// denial from the access rule is delivered as an error event, not returned.
func (h *Hub) WatchDoc(ref DocRef, fn func(DocEvent)) Unsubscribe {
	h.mu.Lock()
	if err := h.checkLocked(errbus.OpGet, ref.Path); err != nil {
		h.mu.Unlock()
		fn(DocEvent{Err: err})
		return func() {}
	}

	h.nextID++
	id := h.nextID
	h.docSubs[ref.Path] = append(h.docSubs[ref.Path], docSub{id: id, fn: fn})
	// Deliver the initial state before releasing the lock so a concurrent
	// write cannot be observed ahead of it.
	fn(DocEvent{Snap: h.docSnapshotLocked(ref.Path)})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			subs := h.docSubs[ref.Path]
			for i, s := range subs {
				if s.id == id {
					h.docSubs[ref.Path] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			h.mu.Unlock()
		})
	}
}

// WatchQuery opens a live subscription on a collection query. The callback
// receives the currently matching documents immediately and again after
// every write to the collection.
func (h *Hub) WatchQuery(q Query, fn func(QueryEvent)) Unsubscribe {
	h.mu.Lock()
	if err := h.checkLocked(errbus.OpList, q.Path()); err != nil {
		h.mu.Unlock()
		fn(QueryEvent{Err: err})
		return func() {}
	}

	h.nextID++
	id := h.nextID
	col := q.Collection
	h.querySubs[col] = append(h.querySubs[col], querySub{id: id, q: q, fn: fn})
	// As in WatchDoc, the initial snapshots go out under the lock so they
	// always precede concurrent write notifications.
	fn(QueryEvent{Snaps: h.queryLocked(q)})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			subs := h.querySubs[col]
			for i, s := range subs {
				if s.id == id {
					h.querySubs[col] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			h.mu.Unlock()
		})
	}
}

func (h *Hub) docSnapshotLocked(path string) DocSnapshot {
	fields, ok := h.docs[path]
	return DocSnapshot{Ref: DocRef{Path: path}, Exists: ok, Fields: fields}
}

func (h *Hub) notifyLocked(path string) {
	for _, s := range h.docSubs[path] {
		s.fn(DocEvent{Snap: h.docSnapshotLocked(path)})
	}
	col := DocRef{Path: path}.Collection()
	for _, s := range h.querySubs[col] {
		s.fn(QueryEvent{Snaps: h.queryLocked(s.q)})
	}
}

func (h *Hub) queryLocked(q Query) []DocSnapshot {
	snaps := make([]DocSnapshot, 0)
	prefix := q.Collection + "/"
	for path, fields := range h.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		// direct children only
		if strings.Contains(path[len(prefix):], "/") {
			continue
		}
		if !matches(fields, q.Filters) {
			continue
		}
		snaps = append(snaps, DocSnapshot{Ref: DocRef{Path: path}, Exists: true, Fields: fields})
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		for _, ord := range q.OrderBy {
			c, ok := compareValues(snaps[i].Fields[ord.Field], snaps[j].Fields[ord.Field])
			if !ok || c == 0 {
				continue
			}
			if ord.Desc {
				return c > 0
			}
			return c < 0
		}
		// fall back to the store's native ordering: insertion order
		return h.seq[snaps[i].Ref.Path] < h.seq[snaps[j].Ref.Path]
	})

	if q.Limit > 0 && len(snaps) > q.Limit {
		snaps = snaps[:q.Limit]
	}
	return snaps
}

func matches(fields map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}
		c, comparable := compareValues(v, f.Value)
		switch f.Op {
		case "==":
			if !comparable || c != 0 {
				return false
			}
		case "<":
			if !comparable || c >= 0 {
				return false
			}
		case "<=":
			if !comparable || c > 0 {
				return false
			}
		case ">":
			if !comparable || c <= 0 {
				return false
			}
		case ">=":
			if !comparable || c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders two field values of the same kind: numbers, strings,
// bools or timestamps.
func compareValues(a, b interface{}) (int, bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case bv:
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bv):
			return -1, true
		case av.After(bv):
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
