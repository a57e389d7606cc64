package docstore

import (
	"math"
	"strings"
	"time"
)

// Document is a document id plus its top-level fields.
type Document struct {
	ID     string
	Fields map[string]any
}

// String returns a string field, or "" when missing or not a string.
func (d Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// TrimmedString returns a string field with surrounding whitespace removed.
func (d Document) TrimmedString(field string) string {
	return strings.TrimSpace(d.String(field))
}

// Int returns a numeric field as int64. Drivers disagree on numeric types
// (Firestore yields int64, Mongo int32/int64, JSON float64).
func (d Document) Int(field string) int64 {
	n, _ := toInt64(d.Fields[field])
	return n
}

// Time returns a timestamp field, or the zero time.
func (d Document) Time(field string) time.Time {
	switch v := d.Fields[field].(type) {
	case time.Time:
		return v
	case interface{ Time() time.Time }:
		return v.Time()
	default:
		return time.Time{}
	}
}

// Clone returns a copy whose field map can be mutated independently.
func (d Document) Clone() Document {
	return Document{ID: d.ID, Fields: cloneFields(d.Fields)}
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
