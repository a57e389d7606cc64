// Package docstore is the boundary to the hosted realtime document store.
//
// Everything above this package sees documents as (collection, id, fields)
// and consumes five single-document primitives plus a change stream that
// delivers one initial snapshot followed by deltas. No multi-document
// transaction is offered.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed is returned by operations on a store that has been closed.
	ErrClosed = errors.New("docstore: store closed")
	// ErrNoDocument is returned by Increment when the document does not exist.
	ErrNoDocument = errors.New("docstore: document not found")
)

// Store is the document store as consumed by the services.
type Store interface {
	// Get reads one document. The bool is false when it does not exist.
	Get(ctx context.Context, collection, id string) (Document, bool, error)
	// Set writes one document. With merge the given fields are overlaid on
	// the existing document, otherwise the document is replaced.
	Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error
	// Delete removes one document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Increment atomically adds delta to a numeric field of an existing document.
	Increment(ctx context.Context, collection, id, field string, delta int64) error
	// Query returns every document matching all filters.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// Subscribe opens a change stream over the documents matching all filters.
	Subscribe(ctx context.Context, collection string, filters ...Filter) (Subscription, error)
}

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Where builds a Filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Matches reports whether fields satisfy every filter.
func Matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok || !equalValues(v, f.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if an, ok := toInt64(a); ok {
		if bn, ok := toInt64(b); ok {
			return an == bn
		}
	}
	return a == b
}

// ChangeKind classifies one delta.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one document entering, changing in, or leaving the result set.
type Change struct {
	Kind ChangeKind
	Doc  Document
}

// Snapshot is one delivery on a change stream. The first snapshot of a
// subscription has Initial set and lists every matching document in Docs.
// Later snapshots carry the deltas in Changes and the full current result
// set in Docs, so Len is always the number of matching documents.
type Snapshot struct {
	Initial bool
	Docs    []Document
	Changes []Change
	ReadAt  time.Time
}

// Len returns the number of documents matching the subscription.
func (s Snapshot) Len() int {
	return len(s.Docs)
}

// Subscription is a live change stream.
//
// Snapshots is closed when the stream ends, either through Cancel, context
// cancellation, or a terminal backend error reported by Err.
type Subscription interface {
	Snapshots() <-chan Snapshot
	// Cancel stops the stream. It is idempotent and safe after the stream ended.
	Cancel()
	// Err returns the terminal error, or nil if the stream was cancelled.
	Err() error
}
