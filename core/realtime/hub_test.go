package realtime

import (
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/recedu/reconline/core/errbus"
)

func TestHubWatchDocDeliversCurrentStateAndWrites(t *testing.T) {
	hub := NewHub()

	var events []DocEvent
	unsub := hub.WatchDoc(DocRef{Path: "users/42"}, func(evt DocEvent) {
		events = append(events, evt)
	})
	defer unsub()

	if len(events) != 1 || events[0].Snap.Exists {
		t.Fatalf("want immediate not-found snapshot; got %+v", events)
	}

	if err := hub.Set("users/42", map[string]interface{}{"name": "Ben"}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := hub.Set("users/42", map[string]interface{}{"name": "Benjamin"}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("want 3 events (initial + 2 writes); got %d", len(events))
	}
	if got := events[2].Snap.Record()["name"]; got != "Benjamin" {
		t.Errorf("want write-order delivery ending at Benjamin; got %v", got)
	}
}

func TestHubWatchDocOrderedAgainstConcurrentWrites(t *testing.T) {
	hub := NewHub()
	_ = hub.Set("tickets/1", map[string]interface{}{"v": 0})

	const writes = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= writes; i++ {
			_ = hub.Set("tickets/1", map[string]interface{}{"v": i})
		}
	}()

	var (
		mu   sync.Mutex
		seen []int
	)
	unsub := hub.WatchDoc(DocRef{Path: "tickets/1"}, func(evt DocEvent) {
		mu.Lock()
		seen = append(seen, evt.Snap.Record()["v"].(int))
		mu.Unlock()
	})
	<-done
	unsub()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("stale snapshot after a newer write: %d after %d", seen[i], seen[i-1])
		}
	}
	if last := seen[len(seen)-1]; last != writes {
		t.Fatalf("want the final write observed; got %d", last)
	}
}

func TestHubWatchQueryOrderedAgainstConcurrentWrites(t *testing.T) {
	hub := NewHub()
	_ = hub.Set("tickets/1", map[string]interface{}{"v": 0})

	const writes = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= writes; i++ {
			_ = hub.Set("tickets/1", map[string]interface{}{"v": i})
		}
	}()

	var (
		mu   sync.Mutex
		seen []int
	)
	unsub := hub.WatchQuery(Query{Collection: "tickets"}, func(evt QueryEvent) {
		mu.Lock()
		seen = append(seen, evt.Snaps[0].Record()["v"].(int))
		mu.Unlock()
	})
	<-done
	unsub()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("stale result set after a newer write: %d after %d", seen[i], seen[i-1])
		}
	}
	if last := seen[len(seen)-1]; last != writes {
		t.Fatalf("want the final write observed; got %d", last)
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()

	var count int
	unsub := hub.WatchDoc(DocRef{Path: "rooms/1"}, func(DocEvent) { count++ })
	unsub()
	unsub() // safe to call twice

	_ = hub.Set("rooms/1", map[string]interface{}{"topic": "physics"})
	if count != 1 {
		t.Errorf("want only the initial event; got %d", count)
	}
}

func TestHubQueryFilterOrderLimit(t *testing.T) {
	hub := NewHub()
	_ = hub.Set("courses/1", map[string]interface{}{"code": "MAT101", "published": true, "seats": 30})
	_ = hub.Set("courses/2", map[string]interface{}{"code": "ENG201", "published": true, "seats": 20})
	_ = hub.Set("courses/3", map[string]interface{}{"code": "PHY301", "published": false, "seats": 10})
	_ = hub.Set("courses/2/notes/1", map[string]interface{}{"body": "nested docs are not collection members"})

	var last QueryEvent
	unsub := hub.WatchQuery(Query{
		Collection: "courses",
		Filters:    []Filter{{Field: "published", Op: "==", Value: true}},
		OrderBy:    []Order{{Field: "code"}},
		Limit:      5,
	}, func(evt QueryEvent) { last = evt })
	defer unsub()

	recs := last.Records()
	if len(recs) != 2 {
		t.Fatalf("want 2 published courses; got %d", len(recs))
	}
	if recs[0]["code"] != "ENG201" || recs[1]["code"] != "MAT101" {
		t.Errorf("want ordering by code; got %v, %v", recs[0]["code"], recs[1]["code"])
	}

	// a write into the collection re-notifies
	_ = hub.Set("courses/4", map[string]interface{}{"code": "ART101", "published": true, "seats": 15})
	recs = last.Records()
	if len(recs) != 3 || recs[0]["code"] != "ART101" {
		t.Errorf("want live update with new course first; got %+v", recs)
	}
}

func TestHubQueryZeroMatches(t *testing.T) {
	hub := NewHub()

	var last QueryEvent
	unsub := hub.WatchQuery(Query{Collection: "threads"}, func(evt QueryEvent) { last = evt })
	defer unsub()

	if last.Err != nil {
		t.Fatalf("zero matches is a success: %v", last.Err)
	}
	if recs := last.Records(); recs == nil || len(recs) != 0 {
		t.Errorf("want empty, non-nil records; got %#v", recs)
	}
}

func TestHubGuardDeniesAsError(t *testing.T) {
	hub := NewHub()
	denied := errors.New("denied by rules")
	hub.SetGuard(func(op errbus.Operation, path string) error {
		if op == errbus.OpGet || op == errbus.OpList {
			return denied
		}
		return nil
	})

	var docEvt DocEvent
	hub.WatchDoc(DocRef{Path: "users/1"}, func(evt DocEvent) { docEvt = evt })
	if docEvt.Err == nil {
		t.Error("want doc watch denial delivered as an error event")
	}

	var qEvt QueryEvent
	hub.WatchQuery(Query{Collection: "users"}, func(evt QueryEvent) { qEvt = evt })
	if qEvt.Err == nil {
		t.Error("want query watch denial delivered as an error event")
	}
}

func TestHubGuardDeniesWrite(t *testing.T) {
	hub := NewHub()
	hub.SetGuard(func(op errbus.Operation, path string) error {
		if op == errbus.OpWrite {
			return errors.New("denied")
		}
		return nil
	})

	err := hub.Set("grades/1", map[string]interface{}{"score": 100})
	if err == nil {
		t.Fatal("want denied write to fail")
	}
	var perr *errbus.PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("want *errbus.PermissionError; got %T", err)
	}
	if perr.Operation != errbus.OpWrite || perr.Path != "grades/1" {
		t.Errorf("unexpected event: %+v", perr)
	}
	if perr.RequestResourceData["score"] != 100 {
		t.Errorf("want attempted payload carried on the event; got %+v", perr.RequestResourceData)
	}

	if _, ok := hub.Get("grades/1"); ok {
		t.Error("denied write must not be applied")
	}
}
