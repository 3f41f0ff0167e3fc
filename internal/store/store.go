package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("store: document not found")

// Doc is a loosely typed document, one row/record per id.
type Doc map[string]any

// Store is a transactional document store. Set merges fields into the
// existing document (last-write-wins per field); guarded read-modify-write
// sequences must run inside RunInTransaction, where the callback observes a
// consistent snapshot and all writes commit atomically or not at all.
type Store interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	GetBy(ctx context.Context, collection, field, value string) (Doc, error)
	Set(ctx context.Context, collection, id string, fields Doc) error
	Delete(ctx context.Context, collection, id string) error
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error
}

func (d Doc) GetString(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

func (d Doc) GetBool(key string) bool {
	if v, ok := d[key].(bool); ok {
		return v
	}
	return false
}

// GetInt reads a numeric field regardless of how the backing store decoded
// it (int64 from sqlite, float64 from JSON).
func (d Doc) GetInt(key string) int64 {
	switch v := d[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func (d Doc) GetFloat(key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Clone returns a shallow copy of the document.
func (d Doc) Clone() Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
