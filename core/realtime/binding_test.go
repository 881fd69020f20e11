package realtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/recedu/reconline/core/errbus"
)

// mockStore records subscribe calls and lets tests drive the callbacks.
type mockStore struct {
	mu         sync.Mutex
	docCalls   int
	queryCalls int
	docFn      func(DocEvent)
	queryFn    func(QueryEvent)
	unsubCount int
}

func (m *mockStore) WatchDoc(ref DocRef, fn func(DocEvent)) Unsubscribe {
	m.mu.Lock()
	m.docCalls++
	m.docFn = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.unsubCount++
		m.mu.Unlock()
	}
}

func (m *mockStore) WatchQuery(q Query, fn func(QueryEvent)) Unsubscribe {
	m.mu.Lock()
	m.queryCalls++
	m.queryFn = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.unsubCount++
		m.mu.Unlock()
	}
}

func (m *mockStore) pushDoc(evt DocEvent) {
	m.mu.Lock()
	fn := m.docFn
	m.mu.Unlock()
	fn(evt)
}

func (m *mockStore) pushQuery(evt QueryEvent) {
	m.mu.Lock()
	fn := m.queryFn
	m.mu.Unlock()
	fn(evt)
}

func TestDocBindingNilRef(t *testing.T) {
	store := &mockStore{}
	b := NewDocBinding(store, errbus.NewBus())

	b.Bind(nil)

	res := b.Result()
	if res.Data != nil || res.Loading || res.Err != nil {
		t.Errorf("nil ref: want {nil false nil}; got %+v", res)
	}
	if store.docCalls != 0 {
		t.Errorf("nil ref must not subscribe; got %d calls", store.docCalls)
	}
}

func TestDocBindingEqualPathDoesNotResubscribe(t *testing.T) {
	store := &mockStore{}
	b := NewDocBinding(store, errbus.NewBus())

	r1 := DocRef{Path: "users/42"}
	r2 := DocRef{Path: "users/42"} // distinct value, same path
	b.Bind(&r1)
	b.Bind(&r2)

	if store.docCalls != 1 {
		t.Errorf("want 1 subscribe call for equal paths; got %d", store.docCalls)
	}
	if store.unsubCount != 0 {
		t.Errorf("equal-path rebind must not tear down; got %d unsubscribes", store.unsubCount)
	}
}

func TestDocBindingRebindNewIdentity(t *testing.T) {
	store := &mockStore{}
	b := NewDocBinding(store, errbus.NewBus())

	b.Bind(&DocRef{Path: "users/42"})
	b.Bind(&DocRef{Path: "users/43"})

	if store.docCalls != 2 {
		t.Errorf("want 2 subscribe calls; got %d", store.docCalls)
	}
	if store.unsubCount != 1 {
		t.Errorf("want old subscription torn down once; got %d", store.unsubCount)
	}
}

func TestDocBindingMissingDocSettles(t *testing.T) {
	store := &mockStore{}
	b := NewDocBinding(store, errbus.NewBus())

	ref := DocRef{Path: "users/404"}
	b.Bind(&ref)

	if res := b.Result(); !res.Loading {
		t.Fatalf("want loading before first snapshot; got %+v", res)
	}

	store.pushDoc(DocEvent{Snap: DocSnapshot{Ref: ref, Exists: false}})

	res := b.Result()
	if res.Data != nil || res.Loading || res.Err != nil {
		t.Errorf("missing doc: want {nil false nil}; got %+v", res)
	}
}

func TestDocBindingSnapshotSequence(t *testing.T) {
	store := &mockStore{}
	b := NewDocBinding(store, errbus.NewBus())

	ref := DocRef{Path: "users/42"}
	b.Bind(&ref)

	store.pushDoc(DocEvent{Snap: DocSnapshot{Ref: ref, Exists: true, Fields: map[string]interface{}{"name": "Ben"}}})

	res := b.Result()
	if res.Loading || res.Err != nil {
		t.Fatalf("want settled result; got %+v", res)
	}
	if res.Data.ID() != "42" || res.Data["name"] != "Ben" {
		t.Errorf("want {id:42 name:Ben}; got %+v", res.Data)
	}

	// second push updates in place, with no intermediate loading flash
	store.pushDoc(DocEvent{Snap: DocSnapshot{Ref: ref, Exists: true, Fields: map[string]interface{}{"name": "Benjamin"}}})

	res = b.Result()
	if res.Loading {
		t.Error("second snapshot must not flip loading back on")
	}
	if res.Data["name"] != "Benjamin" {
		t.Errorf("want updated name Benjamin; got %+v", res.Data)
	}
}

func TestDocBindingErrorPublishesOnce(t *testing.T) {
	store := &mockStore{}
	bus := errbus.NewBus()
	b := NewDocBinding(store, bus)

	var events []*errbus.PermissionError
	defer bus.Subscribe(func(e *errbus.PermissionError) { events = append(events, e) })()

	ref := DocRef{Path: "grades/42"}
	b.Bind(&ref)

	good := DocSnapshot{Ref: ref, Exists: true, Fields: map[string]interface{}{"score": 90}}
	store.pushDoc(DocEvent{Snap: good})

	denied := errors.New("permission denied")
	store.pushDoc(DocEvent{Err: denied})

	if len(events) != 1 {
		t.Fatalf("want exactly 1 permission event; got %d", len(events))
	}
	if events[0].Operation != errbus.OpGet {
		t.Errorf("want operation get; got %s", events[0].Operation)
	}
	if events[0].Path != "grades/42" {
		t.Errorf("want path grades/42; got %s", events[0].Path)
	}

	res := b.Result()
	if res.Err != denied {
		t.Errorf("want underlying error surfaced; got %v", res.Err)
	}
	// previously seen good data is kept
	if res.Data == nil || res.Data["score"] != 90 {
		t.Errorf("want last good data retained; got %+v", res.Data)
	}
}

func TestQueryBindingEmptyMatchIsNotNil(t *testing.T) {
	store := &mockStore{}
	b := NewQueryBinding(store, errbus.NewBus())

	q := Query{Collection: "courses"}
	b.Bind(&q)

	store.pushQuery(QueryEvent{Snaps: nil})

	res := b.Result()
	if res.Loading || res.Err != nil {
		t.Fatalf("want settled result; got %+v", res)
	}
	if res.Data == nil {
		t.Fatal("empty query must settle to an empty slice, not nil")
	}
	if len(res.Data) != 0 {
		t.Errorf("want 0 records; got %d", len(res.Data))
	}
}

func TestQueryBindingStructuralEquality(t *testing.T) {
	store := &mockStore{}
	b := NewQueryBinding(store, errbus.NewBus())

	// independently constructed, identical parameters
	q1 := Query{Collection: "courses", Filters: []Filter{{Field: "published", Op: "==", Value: true}}, OrderBy: []Order{{Field: "code"}}}
	q2 := Query{Collection: "courses", Filters: []Filter{{Field: "published", Op: "==", Value: true}}, OrderBy: []Order{{Field: "code"}}}
	b.Bind(&q1)
	b.Bind(&q2)

	if store.queryCalls != 1 {
		t.Errorf("want 1 subscribe call for structurally equal queries; got %d", store.queryCalls)
	}

	q3 := Query{Collection: "courses", Filters: []Filter{{Field: "published", Op: "==", Value: false}}, OrderBy: []Order{{Field: "code"}}}
	b.Bind(&q3)
	if store.queryCalls != 2 {
		t.Errorf("want resubscribe on different filters; got %d calls", store.queryCalls)
	}
}

func TestQueryBindingErrorPublishesList(t *testing.T) {
	store := &mockStore{}
	bus := errbus.NewBus()
	b := NewQueryBinding(store, bus)

	var events []*errbus.PermissionError
	defer bus.Subscribe(func(e *errbus.PermissionError) { events = append(events, e) })()

	q := Query{Collection: "enrollments"}
	b.Bind(&q)

	store.pushQuery(QueryEvent{Err: errors.New("permission denied")})

	if len(events) != 1 {
		t.Fatalf("want exactly 1 permission event; got %d", len(events))
	}
	if events[0].Operation != errbus.OpList {
		t.Errorf("want operation list; got %s", events[0].Operation)
	}
	if events[0].Path != "enrollments" {
		t.Errorf("want path enrollments; got %s", events[0].Path)
	}
}

func TestQueryPathFallback(t *testing.T) {
	q := Query{}
	if got := q.Path(); got != PathUnknown {
		t.Errorf("want %q for underivable path; got %q", PathUnknown, got)
	}
}

func TestDocBindingUpdatesChannel(t *testing.T) {
	store := &mockStore{}
	b := NewDocBinding(store, errbus.NewBus())
	updates := b.Updates()

	ref := DocRef{Path: "rooms/7"}
	b.Bind(&ref)

	store.pushDoc(DocEvent{Snap: DocSnapshot{Ref: ref, Exists: true, Fields: map[string]interface{}{"topic": "maths"}}})

	res := <-updates
	// coalescing channel: the latest state wins
	if res.Loading {
		res = <-updates
	}
	if res.Data["topic"] != "maths" {
		t.Errorf("want streamed update; got %+v", res)
	}
}
