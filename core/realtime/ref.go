// Package realtime provides live document and query subscriptions over a
// document store, with three-state results (loading / present / absent) and
// permission denials reported on a shared error bus instead of thrown at the
// call site.
package realtime

import (
	"reflect"
	"strings"
)

// PathUnknown is the sentinel diagnostic path used when a query's collection
// path cannot be derived.
const PathUnknown = "unknown"

// DocRef identifies a single document by its slash-separated path, e.g.
// "courses/42". Equality is structural: two refs with the same path identify
// the same subscription.
type DocRef struct {
	Path string
}

func (r DocRef) Equal(o DocRef) bool { return r.Path == o.Path }

// Collection returns the parent collection path of the document.
func (r DocRef) Collection() string {
	if i := strings.LastIndex(r.Path, "/"); i > 0 {
		return r.Path[:i]
	}
	return PathUnknown
}

// ID returns the document's identifier (the last path segment).
func (r DocRef) ID() string {
	if i := strings.LastIndex(r.Path, "/"); i >= 0 {
		return r.Path[i+1:]
	}
	return r.Path
}

// Filter is a single field predicate of a Query.
type Filter struct {
	Field string
	Op    string // one of ==, <, <=, >, >=
	Value interface{}
}

// Order is a single ordering term of a Query.
type Order struct {
	Field string
	Desc  bool
}

// Query describes a collection subscription: every document of Collection
// matching all Filters, in OrderBy order, up to Limit (0 = unlimited).
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    []Order
	Limit      int
}

// Equal reports structural equality: same collection, same filters and
// ordering in the same order, same limit. Two independently constructed
// queries with identical parameters are the same subscription.
func (q Query) Equal(o Query) bool {
	if q.Collection != o.Collection || q.Limit != o.Limit {
		return false
	}
	if len(q.Filters) != len(o.Filters) || len(q.OrderBy) != len(o.OrderBy) {
		return false
	}
	for i, f := range q.Filters {
		of := o.Filters[i]
		// Filter values may be non-comparable types such as slices, so a
		// direct struct comparison would panic.
		if f.Field != of.Field || f.Op != of.Op || !reflect.DeepEqual(f.Value, of.Value) {
			return false
		}
	}
	for i, ord := range q.OrderBy {
		if ord != o.OrderBy[i] {
			return false
		}
	}
	return true
}

// Path derives a human-readable collection path for diagnostics.
func (q Query) Path() string {
	if q.Collection == "" {
		return PathUnknown
	}
	return q.Collection
}

// Record is a decoded document: the implicit "id" field merged with the
// document's field map.
type Record map[string]interface{}

// ID returns the record's identifier field.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}
