package realtime

// DocSnapshot is a push-delivered representation of a single document's
// current state.
type DocSnapshot struct {
	Ref    DocRef
	Exists bool
	Fields map[string]interface{}
}

// Record decodes the snapshot into a Record, merging the implicit id field
// with the document's field map. Returns nil for a missing document.
func (s DocSnapshot) Record() Record {
	if !s.Exists {
		return nil
	}
	rec := make(Record, len(s.Fields)+1)
	for k, v := range s.Fields {
		rec[k] = v
	}
	rec["id"] = s.Ref.ID()
	return rec
}

// DocEvent is delivered to a document subscription callback. Exactly one of
// the snapshot or Err is meaningful.
type DocEvent struct {
	Snap DocSnapshot
	Err  error
}

// QueryEvent is delivered to a query subscription callback.
type QueryEvent struct {
	Snaps []DocSnapshot
	Err   error
}

// Records decodes every matched document, in the delivered order. A query
// that legitimately matches zero records yields an empty, non-nil slice.
func (e QueryEvent) Records() []Record {
	recs := make([]Record, 0, len(e.Snaps))
	for _, s := range e.Snaps {
		recs = append(recs, s.Record())
	}
	return recs
}

// Unsubscribe tears down a live subscription. It must be called when the
// consumer goes away; it is safe to call more than once.
type Unsubscribe func()

// Store is the client-side subscription boundary to the document database.
// Callbacks receive an initial event with the current state and a further
// event for every subsequent change, in write order. Failures (most commonly
// permission denials) arrive asynchronously as events carrying Err.
type Store interface {
	WatchDoc(ref DocRef, fn func(DocEvent)) Unsubscribe
	WatchQuery(q Query, fn func(QueryEvent)) Unsubscribe
}
